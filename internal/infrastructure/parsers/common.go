package parsers

import (
	"fmt"
	"os"
	"strings"
)

// checkFileSize fails with ErrFileTooLarge when path exceeds limit bytes
func checkFileSize(path string, limit int64) error {
	if limit <= 0 {
		return nil
	}
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() > limit {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, stat.Size(), limit)
	}
	return nil
}

// normalizeHeader trims names and gives blank or repeated headers positional names
func normalizeHeader(header []string, trim bool) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if trim {
			name = strings.TrimSpace(name)
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

// toRecord maps cells onto header; missing trailing cells become ""
func toRecord(line int, header, cells []string, trim bool) Record {
	values := make(map[string]string, len(header))
	for i, col := range header {
		value := ""
		if i < len(cells) {
			value = cells[i]
			if trim {
				value = strings.TrimSpace(value)
			}
		}
		values[col] = value
	}
	return Record{Line: line, Values: values}
}

// isEmptyRow checks if a row contains only empty strings
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
