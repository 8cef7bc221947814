package parsers

import (
	"context"
	"errors"
	"io"
)

// ErrFileTooLarge is returned when a file exceeds ParserConfig.MaxFileSize
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ErrUnsupportedFormat is returned when no parser is registered for an extension
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Record is one data row of a shipment export
type Record struct {
	// Line is the 1-based position of the row among the data rows of the source
	Line   int
	Values map[string]string
}

// Get returns the value of column, or "" when the row has no such column
func (r Record) Get(column string) string {
	return r.Values[column]
}

// ParseResult is a parsed table with its column order preserved
type ParseResult struct {
	Records     []Record
	TotalRows   int
	SkippedRows int
	Columns     []string
	Format      string
	Sheet       string
}

// HasColumn reports whether the table has a header named column
func (r *ParseResult) HasColumn(column string) bool {
	for _, c := range r.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// FileParser is the interface all parsers must implement
type FileParser interface {
	// Parse reads and parses the file from the given path
	Parse(ctx context.Context, filePath string) (*ParseResult, error)

	// ParseStream reads and parses from an io.Reader
	ParseStream(ctx context.Context, reader io.Reader) (*ParseResult, error)

	// SupportedFormats returns the file extensions this parser supports
	SupportedFormats() []string
}

// ParserConfig holds configuration for all parsers
type ParserConfig struct {
	// SkipEmptyRows drops rows whose cells are all blank
	SkipEmptyRows bool

	// TrimWhitespace trims headers and cell values
	TrimWhitespace bool

	// MaxFileSize is the maximum file size in bytes (0 = unlimited)
	MaxFileSize int64

	// Comma is the CSV field delimiter; zero means ','
	Comma rune

	// Sheet selects the XLSX sheet by name; empty means the first sheet
	Sheet string
}

// DefaultParserConfig returns sensible defaults
func DefaultParserConfig() *ParserConfig {
	return &ParserConfig{
		SkipEmptyRows:  true,
		TrimWhitespace: true,
		MaxFileSize:    500 * 1024 * 1024,
		Comma:          ',',
	}
}
