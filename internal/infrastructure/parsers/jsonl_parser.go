package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// JSONLParser parses newline-delimited JSON, one row object per line
type JSONLParser struct {
	config *ParserConfig
}

// NewJSONLParser creates a new JSONL parser
func NewJSONLParser(config *ParserConfig) *JSONLParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &JSONLParser{config: config}
}

// Parse reads and parses a JSONL file from disk
func (p *JSONLParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := checkFileSize(filePath, p.config.MaxFileSize); err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads JSONL from r. Blank lines are ignored, malformed lines are counted as skipped.
func (p *JSONLParser) ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var records []Record
	columns := newColumnSet()
	totalRows := 0
	skippedRows := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		totalRows++

		keys, values, err := decodeObject(json.NewDecoder(bytes.NewReader(line)))
		if err != nil {
			skippedRows++
			continue
		}
		if p.config.SkipEmptyRows && allBlank(values) {
			skippedRows++
			continue
		}

		columns.add(keys)
		records = append(records, p.record(totalRows, values))
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading JSONL stream: %w", err)
	}

	fill(records, columns.names)

	return &ParseResult{
		Records:     records,
		TotalRows:   totalRows,
		SkippedRows: skippedRows,
		Columns:     columnsOrEmpty(columns.names),
		Format:      "JSONL",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *JSONLParser) SupportedFormats() []string {
	return []string{".jsonl", ".ndjson"}
}

func (p *JSONLParser) record(line int, values map[string]string) Record {
	return objectRecord(line, values, p.config.TrimWhitespace)
}
