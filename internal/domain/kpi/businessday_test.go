package kpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusinessZone_DayOf(t *testing.T) {
	z := DefaultBusinessZone()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"late night local wall time stays on the same day", "2025-10-05T23:50:00", "2025-10-05"},
		{"late night with explicit offset", "2025-10-05T23:50:00+09:00", "2025-10-05"},
		{"utc afternoon rolls into next local day", "2025-10-05T15:30:00Z", "2025-10-06"},
		{"utc just before local midnight", "2025-10-05T14:59:59Z", "2025-10-05"},
		{"early morning local", "2025-10-05T00:10:00", "2025-10-05"},
		{"early morning local expressed in utc", "2025-10-04T15:10:00Z", "2025-10-05"},
		{"fractional seconds", "2025-10-05T08:00:00.123Z", "2025-10-05"},
		{"space separated", "2025-10-05 12:00:00", "2025-10-05"},
		{"space separated with offset", "2025-10-05 10:00:00+09:00", "2025-10-05"},
		{"space separated utc rolls over", "2025-10-05 23:30:00+00:00", "2025-10-06"},
		{"postgres short offset", "2025-10-05 20:00:00.123456+00", "2025-10-06"},
		{"postgres local offset", "2025-10-05 23:59:59+09", "2025-10-05"},
		{"compact offset", "2025-10-05 12:00:00+0900", "2025-10-05"},
		{"date only", "2025-10-05", "2025-10-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := z.DayOf(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBusinessZone_DayOf_Malformed(t *testing.T) {
	z := DefaultBusinessZone()
	for _, raw := range []string{"", "   ", "yesterday", "2025-13-45", "05/10/2025"} {
		_, ok := z.DayOf(raw)
		assert.False(t, ok, raw)
	}
}

func TestNewBusinessZone(t *testing.T) {
	tests := []struct {
		tz      string
		raw     string
		want    string
		wantErr bool
	}{
		{tz: "", raw: "2025-01-01T15:00:00Z", want: "2025-01-02"},
		{tz: "+09:00", raw: "2025-01-01T15:00:00Z", want: "2025-01-02"},
		{tz: "+0000", raw: "2025-01-01T15:00:00Z", want: "2025-01-01"},
		{tz: "-05:00", raw: "2025-01-01T03:00:00Z", want: "2024-12-31"},
		{tz: "UTC", raw: "2025-01-01T23:00:00Z", want: "2025-01-01"},
		{tz: "+9", wantErr: true},
		{tz: "+25:00", wantErr: true},
		{tz: "Not/AZone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tz, func(t *testing.T) {
			z, err := NewBusinessZone(tt.tz)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, ok := z.DayOf(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDaysBetween(t *testing.T) {
	d, ok := DaysBetween("2025-01-10", "2025-01-20")
	require.True(t, ok)
	assert.Equal(t, 10, d)

	d, ok = DaysBetween("2025-03-01", "2025-02-27")
	require.True(t, ok)
	assert.Equal(t, -2, d)

	d, ok = DaysBetween("2024-02-28", "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, 2, d)

	_, ok = DaysBetween("bad", "2025-01-01")
	assert.False(t, ok)
}

func TestAddDays(t *testing.T) {
	got, ok := AddDays("2025-01-25", 7)
	require.True(t, ok)
	assert.Equal(t, "2025-02-01", got)

	_, ok = AddDays("", 1)
	assert.False(t, ok)
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{StartDate: "2025-01-01", EndDate: "2025-01-31"}
	assert.True(t, r.Contains("2025-01-01"))
	assert.True(t, r.Contains("2025-01-31"))
	assert.False(t, r.Contains("2024-12-31"))
	assert.False(t, r.Contains("2025-02-01"))
	assert.False(t, r.Contains(""))

	open := DateRange{StartDate: "2025-01-01"}
	assert.True(t, open.Contains("2030-01-01"))
	assert.False(t, open.Contains("2024-01-01"))

	var zero DateRange
	assert.True(t, zero.IsZero())
	assert.True(t, zero.Contains("1999-01-01"))
	assert.True(t, zero.Contains(""))
}
