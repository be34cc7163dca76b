package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kpidash/backend/internal/domain/report"
)

// maxSheetName is the spreadsheet limit on sheet name length
const maxSheetName = 31

// WriteWorkbook writes tables as an xlsx workbook, one sheet per table.
// Numeric cells keep their numeric type.
func WriteWorkbook(w io.Writer, tables ...report.Table) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	used := make(map[string]int)
	for i, t := range tables {
		name := uniqueSheetName(sheetName(t.Title, i), used)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		if err := writeSheet(f, name, t); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, t report.Table) error {
	if len(t.Columns) == 0 {
		return nil
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header of %q: %w", t.Title, err)
	}
	for r, row := range t.Rows {
		values := make([]any, len(t.Columns))
		for i, col := range t.Columns {
			values[i] = cellValue(row.Get(col))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("failed to address row %d: %w", r+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %q: %w", r+2, t.Title, err)
		}
	}
	return nil
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return x.InexactFloat64()
	case string, int, int64, float64, bool:
		return x
	default:
		return report.FormatValue(x)
	}
}

func sheetName(title string, idx int) string {
	name := strings.NewReplacer(
		"[", "(", "]", ")", ":", "", "*", "", "?", "", "/", "-", `\`, "-", "'", "",
	).Replace(title)
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Sheet%d", idx+1)
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// uniqueSheetName suffixes name until it matches no sheet already taken.
// Sheet names compare case-insensitively.
func uniqueSheetName(name string, used map[string]int) string {
	key := strings.ToLower(name)
	if used[key] == 0 {
		used[key] = 1
		return name
	}
	for n := used[key] + 1; ; n++ {
		suffix := fmt.Sprintf(" %d", n)
		r := []rune(name)
		if len(r)+len([]rune(suffix)) > maxSheetName {
			r = r[:maxSheetName-len([]rune(suffix))]
		}
		candidate := string(r) + suffix
		if used[strings.ToLower(candidate)] == 0 {
			used[key] = n
			used[strings.ToLower(candidate)] = 1
			return candidate
		}
	}
}
