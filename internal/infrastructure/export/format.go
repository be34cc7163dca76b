// Package export serializes report tables into downloadable files.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/kpidash/backend/internal/domain/report"
)

// Format is an export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Export errors
var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrNoTables          = errors.New("no tables to export")
)

// ParseFormat validates a format string. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Encode serializes tables in the given format
func Encode(format Format, tables ...report.Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatCSV:
		err = WriteSections(&buf, tables...)
	case FormatXLSX:
		err = WriteWorkbook(&buf, tables...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
