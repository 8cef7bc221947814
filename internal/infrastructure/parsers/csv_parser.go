package parsers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser parses delimited text files
type CSVParser struct {
	config  *ParserConfig
	formats []string
	format  string
}

// NewCSVParser creates a new CSV parser
func NewCSVParser(config *ParserConfig) *CSVParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	return &CSVParser{config: config, formats: []string{".csv"}, format: "CSV"}
}

// NewTSVParser creates a CSV parser that splits on tabs
func NewTSVParser(config *ParserConfig) *CSVParser {
	if config == nil {
		config = DefaultParserConfig()
	}
	tsv := *config
	tsv.Comma = '\t'
	return &CSVParser{config: &tsv, formats: []string{".tsv"}, format: "TSV"}
}

// Parse reads and parses a CSV file from disk
func (p *CSVParser) Parse(ctx context.Context, filePath string) (*ParseResult, error) {
	if err := checkFileSize(filePath, p.config.MaxFileSize); err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	return p.ParseStream(ctx, file)
}

// ParseStream reads CSV data from r. A UTF-8 or UTF-16 byte order mark is
// honoured and stripped, so spreadsheet exports keep a clean first header.
func (p *CSVParser) ParseStream(ctx context.Context, r io.Reader) (*ParseResult, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	csvReader := csv.NewReader(decoded)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true
	if p.config.Comma != 0 {
		csvReader.Comma = p.config.Comma
	}
	// Leading-space trimming would swallow empty fields when the delimiter is a tab
	csvReader.TrimLeadingSpace = p.config.TrimWhitespace && csvReader.Comma != '\t'

	rawHeader, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read CSV header: file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	header := normalizeHeader(rawHeader, p.config.TrimWhitespace)

	var records []Record
	totalRows := 0
	skippedRows := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		totalRows++
		if err != nil {
			// Malformed rows are skipped, parsing continues
			skippedRows++
			continue
		}

		if p.config.SkipEmptyRows && isEmptyRow(row) {
			skippedRows++
			continue
		}

		records = append(records, toRecord(totalRows, header, row, p.config.TrimWhitespace))
	}

	return &ParseResult{
		Records:     records,
		TotalRows:   totalRows,
		SkippedRows: skippedRows,
		Columns:     header,
		Format:      p.format,
	}, nil
}

// SupportedFormats returns the file extensions this parser supports
func (p *CSVParser) SupportedFormats() []string {
	return p.formats
}
