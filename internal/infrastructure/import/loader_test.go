package csvimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpidash/backend/internal/domain/kpi"
)

const orderCSV = "\xEF\xBB\xBFstore_name,product_name,product_count,order_time,user_name,product_time,barcode,membership_id,remain_count_after_purchase,total_count_at_purchase\n" +
	"강남점,Americano,1,2025-01-10T10:00:00+09:00,kim,pre,880001,11,0,10\n" +
	"강남점,\"Protein\\nShake\",2,2025-01-11 09:30:00,lee,later,880002,abc,3.0,10\n"

func TestLoadOrders(t *testing.T) {
	result, err := LoadOrders(strings.NewReader(orderCSV))
	require.NoError(t, err)
	require.Len(t, result.Orders, 2)
	assert.Equal(t, 2, result.TotalRows)

	first := result.Orders[0]
	assert.Equal(t, "kim", first.UserName)
	assert.Equal(t, int64(11), first.MembershipID)
	assert.Equal(t, kpi.ProductTimePre, first.ProductTime)
	assert.True(t, first.Exhausted())

	second := result.Orders[1]
	assert.Equal(t, `Protein\nShake`, second.ProductName)
	assert.Equal(t, int64(0), second.MembershipID)
	require.NotNil(t, second.RemainCountAfterPurchase)
	assert.Equal(t, 3, *second.RemainCountAfterPurchase)
	assert.Equal(t, kpi.ProductTime(""), second.ProductTime)

	require.Equal(t, 2, result.TotalErrors)
	assert.Equal(t, ColMembershipID, result.Warnings[0].Column)
	assert.Equal(t, ErrCodeImportInvalidType, result.Warnings[0].Code)
	assert.Equal(t, 3, result.Warnings[0].Row)
	assert.Equal(t, ColProductTime, result.Warnings[1].Column)
}

func TestLoadOrders_UnknownRemainCountStaysUnset(t *testing.T) {
	input := "user_name,order_time,membership_id,remain_count_after_purchase\n" +
		"kim,2025-01-05T10:00:00+09:00,7,\n" +
		"kim,2025-01-05T11:00:00+09:00,7,abc\n" +
		"kim,2025-01-05T12:00:00+09:00,7,3\n"

	result, err := LoadOrders(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result.Orders, 3)

	assert.Nil(t, result.Orders[0].RemainCountAfterPurchase)
	assert.Nil(t, result.Orders[1].RemainCountAfterPurchase)
	require.NotNil(t, result.Orders[2].RemainCountAfterPurchase)
	assert.Equal(t, 3, *result.Orders[2].RemainCountAfterPurchase)
	for _, o := range result.Orders {
		assert.False(t, o.Exhausted())
	}

	require.Equal(t, 1, result.TotalErrors)
	assert.Equal(t, ColRemainCountAfterPurchase, result.Warnings[0].Column)
	assert.Equal(t, ErrCodeImportInvalidType, result.Warnings[0].Code)
	assert.Equal(t, 3, result.Warnings[0].Row)

	c := kpi.NewCalculator()
	assert.Empty(t, c.ConsumptionDates(result.Orders))
	members := []kpi.Member{{ID: 1, Name: "kim", Memberships: []kpi.Membership{{ID: 7, Name: "10회권", CreatedAt: "2025-01-01"}}}}
	assert.Empty(t, c.AvgConsumptionPeriod(members, result.Orders, kpi.DateRange{}).UserDetails)
}

func TestLoadOrders_MissingColumns(t *testing.T) {
	_, err := LoadOrders(strings.NewReader("store_name,product_name\nA,B\n"))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestLoadMembers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"bare array", `[{"id":1,"name":"M","memberships":[{"id":10,"created_at":"2025-01-01","remain_count":0}]}]`, 1},
		{"data envelope", `{"data":[{"id":1},{"id":2}]}`, 2},
		{"null data", `{"data":null}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			members, err := LoadMembers(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, members, tt.want)
		})
	}

	_, err := LoadMembers(strings.NewReader("  "))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = LoadMembers(strings.NewReader(`{"data":`))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	ordersPath := filepath.Join(dir, "orders.csv")
	membersPath := filepath.Join(dir, "members.json")
	require.NoError(t, os.WriteFile(ordersPath, []byte(orderCSV), 0o600))
	require.NoError(t, os.WriteFile(membersPath, []byte(`[{"id":1,"name":"kim"}]`), 0o600))

	src := NewFileSource(ordersPath, membersPath, nil)
	ctx := context.Background()

	orders, err := src.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	members, err := src.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "kim", members[0].Name)

	noMembers, err := NewFileSource(ordersPath, "", nil).ListMembers(ctx)
	require.NoError(t, err)
	assert.Empty(t, noMembers)

	_, err = NewFileSource(filepath.Join(dir, "missing.csv"), "", nil).ListOrders(ctx)
	assert.Error(t, err)
}
