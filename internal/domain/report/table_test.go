package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpidash/backend/internal/domain/kpi"
)

func TestNewTable_ColumnOrderIsFirstSeen(t *testing.T) {
	table := NewTable("t", []Row{
		{{Column: "b", Value: 1}, {Column: "a", Value: "x"}},
		{{Column: "a", Value: "y"}, {Column: "c", Value: 2.5}},
	})

	assert.Equal(t, []string{"b", "a", "c"}, table.Columns)
	assert.Equal(t, [][]string{
		{"1", "x", ""},
		{"", "y", "2.5"},
	}, table.Records())
}

func TestNewTable_Empty(t *testing.T) {
	table := NewTable("empty", nil)
	assert.Empty(t, table.Columns)
	assert.Empty(t, table.Records())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"가나", "가나"},
		{42, "42"},
		{int64(7), "7"},
		{0.67, "0.67"},
		{true, "true"},
		{decimal.RequireFromString("1800.50"), "1800.5"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestRetentionTable_Shape(t *testing.T) {
	c := kpi.NewCalculator()
	rows := c.RetentionTable([]kpi.Order{
		{UserName: "kim", OrderTime: "2025-01-01"},
		{UserName: "kim", OrderTime: "2025-01-08"},
	})

	table := RetentionTable(rows)

	require.Len(t, table.Columns, 2+kpi.RetentionDays+2)
	assert.Equal(t, "사용자", table.Columns[0])
	assert.Equal(t, "Day0", table.Columns[2])
	assert.Equal(t, "Day70", table.Columns[72])
	assert.Equal(t, "리텐션", table.Columns[len(table.Columns)-1])

	rec := table.Records()[0]
	assert.Equal(t, VisitedMark, rec[2])
	assert.Equal(t, NotVisitedMark, rec[3])
	assert.Equal(t, VisitedMark, rec[9])
	assert.Equal(t, "0.33", rec[len(rec)-1])
}

func TestProductTable_KeepsNumbers(t *testing.T) {
	c := kpi.NewCalculator()
	res := c.BasicKPI([]kpi.Order{
		{UserName: "kim", ProductName: `Iced\nTea`, OrderTime: "2025-01-01"},
	})

	table := ProductTable(res)

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Iced Tea", table.Rows[0].Get("제품"))
	_, isDecimal := table.Rows[0].Get("총 매출").(decimal.Decimal)
	assert.True(t, isDecimal)
}

func TestRepurchasePeriodTable_Title(t *testing.T) {
	table := RepurchasePeriodTable(kpi.RepurchasePeriodResult{TotalAvgDays: 12.3})
	assert.Equal(t, "재구매 주기 (전체 평균 12.3일)", table.Title)
	assert.Empty(t, table.Rows)
}

func TestFileName(t *testing.T) {
	rng := kpi.DateRange{StartDate: "2025-01-01", EndDate: "2025-01-31"}

	assert.Equal(t, "전체_리텐션_2025-01-01~2025-01-31.csv",
		FileName("", KindRetention.Name(), rng, "csv"))
	assert.Equal(t, "강남점_기본KPI_2025-01-01~2025-01-31.xlsx",
		FileName("강남점", KindBasic.Name(), rng, ".xlsx"))
	assert.Equal(t, "kim_KPI종합_전체기간~전체기간.csv",
		FileName("kim", KindAll.Name(), kpi.DateRange{}, "csv"))
	assert.Equal(t, "a-b_리텐션_2025-01-01~전체기간",
		FileName("a/b", TitleRetention, kpi.DateRange{StartDate: "2025-01-01"}, ""))
}

func TestScopeLabel(t *testing.T) {
	assert.Equal(t, AllScope, ScopeLabel("", ""))
	assert.Equal(t, "강남점", ScopeLabel("강남점", ""))
	assert.Equal(t, "kim", ScopeLabel("강남점", "kim"))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Retention ")
	require.NoError(t, err)
	assert.Equal(t, KindRetention, k)

	_, err = ParseKind("ltv")
	assert.ErrorIs(t, err, ErrUnknownKind)
}
