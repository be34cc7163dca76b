package report

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Cell is one named value in a row
type Cell struct {
	Column string
	Value  any
}

// Row is an ordered set of cells
type Row []Cell

// Get returns the value of column, or nil if the row has no such cell
func (r Row) Get(column string) any {
	for _, c := range r {
		if c.Column == column {
			return c.Value
		}
	}
	return nil
}

// Table is a titled, row-oriented report ready for export.
// Columns keep the order in which they are first seen across rows.
type Table struct {
	Title   string
	Columns []string
	Rows    []Row
}

// NewTable builds a table from uniformly shaped rows
func NewTable(title string, rows []Row) Table {
	seen := make(map[string]struct{})
	var columns []string
	for _, r := range rows {
		for _, c := range r {
			if _, ok := seen[c.Column]; ok {
				continue
			}
			seen[c.Column] = struct{}{}
			columns = append(columns, c.Column)
		}
	}
	return Table{Title: title, Columns: columns, Rows: rows}
}

// Records returns the table body as strings aligned to Columns.
// Cells missing from a row render as empty strings.
func (t Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[i] = FormatValue(r.Get(col))
		}
		out = append(out, rec)
	}
	return out
}

// FormatValue renders a cell value as text
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
