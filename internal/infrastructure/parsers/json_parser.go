package parsers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// JSONParser parses a JSON array of row objects, or a single object
type JSONParser struct {
	config *ParserConfig
}

// NewJSONParser creates a new JSON parser
func NewJSONParser(config *ParserConfig) *JSONParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &JSONParser{config: config}
}

// Parse reads and parses a JSON file from disk
func (p *JSONParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := checkFileSize(filePath, p.config.MaxFileSize); err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream decodes the array element by element without buffering the whole document.
// Unlike JSONL, a malformed element fails the whole parse.
func (p *JSONParser) ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	dec := json.NewDecoder(br)
	columns := newColumnSet()
	var records []Record
	skipped := 0

	appendObject := func(keys []string, values map[string]string) {
		if p.config.SkipEmptyRows && allBlank(values) {
			skipped++
			return
		}
		columns.add(keys)
		records = append(records, objectRecord(len(records)+skipped+1, values, p.config.TrimWhitespace))
	}

	switch first {
	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("failed to read JSON: %w", err)
		}
		for dec.More() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			keys, values, err := decodeObject(dec)
			if err != nil {
				return nil, fmt.Errorf("failed to decode JSON record %d: %w", len(records)+skipped+1, err)
			}
			appendObject(keys, values)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("failed to read closing bracket: %w", err)
		}
	case '{':
		keys, values, err := decodeObject(dec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON object: %w", err)
		}
		appendObject(keys, values)
	default:
		return nil, fmt.Errorf("JSON document must be an array or an object, starts with %q", first)
	}

	fill(records, columns.names)

	return &ParseResult{
		Records:     records,
		TotalRows:   len(records) + skipped,
		SkippedRows: skipped,
		Columns:     columnsOrEmpty(columns.names),
		Format:      "JSON",
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *JSONParser) SupportedFormats() []string {
	return []string{".json"}
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if !strings.ContainsRune(" \t\r\n", rune(b)) {
			return b, br.UnreadByte()
		}
	}
}
