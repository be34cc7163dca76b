package csvimport

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kpidash/backend/internal/domain/kpi"
)

// Order CSV column names
const (
	ColStoreName                = "store_name"
	ColProductName              = "product_name"
	ColProductCount             = "product_count"
	ColOrderTime                = "order_time"
	ColUserName                 = "user_name"
	ColProductTime              = "product_time"
	ColBarcode                  = "barcode"
	ColMembershipID             = "membership_id"
	ColRemainCountAfterPurchase = "remain_count_after_purchase"
	ColTotalCountAtPurchase     = "total_count_at_purchase"
)

// requiredOrderColumns are the columns every KPI needs
var requiredOrderColumns = []string{ColUserName, ColOrderTime}

// OrderImport is the result of loading an order CSV
type OrderImport struct {
	Orders      []kpi.Order
	Warnings    []RowError
	TotalErrors int
	TotalRows   int
}

// LoadOrders reads an order CSV export. Malformed numeric cells are read as
// zero and reported as warnings, except the remaining count, which is left
// unset when blank or malformed. Only unreadable files fail.
func LoadOrders(r io.Reader, opts ...ParserOption) (*OrderImport, error) {
	parser, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(requiredOrderColumns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHeader, strings.Join(missing, ", "))
	}

	rows, err := parser.ReadAllRows()
	if err != nil {
		return nil, err
	}

	ec := NewErrorCollection(0)
	orders := make([]kpi.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, orderFromRow(row, ec))
	}

	return &OrderImport{
		Orders:      orders,
		Warnings:    ec.Errors(),
		TotalErrors: ec.TotalCount(),
		TotalRows:   len(rows),
	}, nil
}

func orderFromRow(row *Row, ec *ErrorCollection) kpi.Order {
	o := kpi.Order{
		StoreName:   row.Get(ColStoreName),
		ProductName: row.Get(ColProductName),
		OrderTime:   row.Get(ColOrderTime),
		UserName:    row.Get(ColUserName),
		Barcode:     row.Get(ColBarcode),
	}
	o.ProductCount = intCell(row, ColProductCount, ec)
	o.MembershipID = int64Cell(row, ColMembershipID, ec)
	o.RemainCountAfterPurchase = optionalIntCell(row, ColRemainCountAfterPurchase, ec)
	o.TotalCountAtPurchase = intCell(row, ColTotalCountAtPurchase, ec)

	switch pt := kpi.ProductTime(strings.ToLower(row.Get(ColProductTime))); pt {
	case "", kpi.ProductTimePre, kpi.ProductTimeDuring, kpi.ProductTimePost:
		o.ProductTime = pt
	default:
		ec.AddFormatError(row.LineNumber, ColProductTime, "pre, during or post", string(pt))
	}
	return o
}

func intCell(row *Row, column string, ec *ErrorCollection) int {
	return int(int64Cell(row, column, ec))
}

func int64Cell(row *Row, column string, ec *ErrorCollection) int64 {
	v, ok := parseIntCell(row, column, ec)
	if !ok {
		return 0
	}
	return v
}

// optionalIntCell returns nil for blank or malformed cells so that a zero is
// only ever read from the file.
func optionalIntCell(row *Row, column string, ec *ErrorCollection) *int {
	v, ok := parseIntCell(row, column, ec)
	if !ok {
		return nil
	}
	return kpi.Count(int(v))
}

func parseIntCell(row *Row, column string, ec *ErrorCollection) (int64, bool) {
	raw := row.Get(column)
	if raw == "" {
		return 0, false
	}
	// Spreadsheet round trips turn integers into "3.0"
	raw = strings.TrimSuffix(raw, ".0")
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		ec.AddTypeError(row.LineNumber, column, "integer", row.Get(column))
		return 0, false
	}
	return v, true
}
