// Package csvimport loads order and member snapshots from files exported
// out of the dashboard, for offline KPI reports.
package csvimport

import (
	"errors"
	"fmt"
)

// Import warning codes
const (
	ErrCodeImportInvalidType   = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeImportInvalidFormat = "ERR_IMPORT_INVALID_FORMAT"
	ErrCodeImportMalformedRow  = "ERR_IMPORT_MALFORMED_ROW"
)

// Common import errors
var (
	// ErrEmptyFile is returned when the file is empty
	ErrEmptyFile = errors.New("import file is empty")

	// ErrInvalidEncoding is returned when the file is not UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding")

	// ErrMissingHeader is returned when the CSV file has no header row
	ErrMissingHeader = errors.New("CSV file missing header row")

	// ErrInvalidHeader is returned when required columns are absent
	ErrInvalidHeader = errors.New("CSV file missing required columns")

	// ErrInvalidJSON is returned when a member dump cannot be decoded
	ErrInvalidJSON = errors.New("invalid member JSON")
)

// RowError is a non-fatal problem found in a specific row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ErrorCollection collects row warnings up to a limit and counts the rest
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0),
		maxErrors: maxErrors,
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// AddTypeError records a cell that does not hold the expected type
func (ec *ErrorCollection) AddTypeError(row int, column, expectedType, value string) {
	ec.Add(RowError{
		Row:     row,
		Column:  column,
		Code:    ErrCodeImportInvalidType,
		Message: fmt.Sprintf("expected %s", expectedType),
		Value:   value,
	})
}

// AddFormatError records a cell in an unexpected format
func (ec *ErrorCollection) AddFormatError(row int, column, expectedFormat, value string) {
	ec.Add(RowError{
		Row:     row,
		Column:  column,
		Code:    ErrCodeImportInvalidFormat,
		Message: fmt.Sprintf("invalid format, expected %s", expectedFormat),
		Value:   value,
	})
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > ec.maxErrors
}
