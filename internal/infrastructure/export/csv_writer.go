package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/kpidash/backend/internal/domain/report"
)

// utf8BOM lets spreadsheet tools detect UTF-8 so Korean labels survive
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteSections writes tables as one CSV text file: a UTF-8 BOM, then for
// each table a "[title]" line, the header and the rows. Sections are
// separated by an empty line.
func WriteSections(w io.Writer, tables ...report.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return fmt.Errorf("failed to write section separator: %w", err)
			}
		}
		if err := cw.Write([]string{"[" + t.Title + "]"}); err != nil {
			return fmt.Errorf("failed to write section header: %w", err)
		}
		if len(t.Columns) > 0 {
			if err := cw.Write(t.Columns); err != nil {
				return fmt.Errorf("failed to write header of %q: %w", t.Title, err)
			}
		}
		if err := cw.WriteAll(t.Records()); err != nil {
			return fmt.Errorf("failed to write rows of %q: %w", t.Title, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
