package kpi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memberM() Member {
	return Member{
		ID:   1,
		Name: "M",
		Memberships: []Membership{
			{ID: 20, Name: "10회권", CreatedAt: "2025-01-20T09:00:00+09:00", TotalCount: 10, RemainCount: Count(10)},
			{ID: 10, Name: "10회권", CreatedAt: "2025-01-01T09:00:00+09:00", TotalCount: 10, RemainCount: Count(0)},
		},
	}
}

func exhaust(membershipID int64, at string) Order {
	return Order{UserName: "M", MembershipID: membershipID, OrderTime: at, RemainCountAfterPurchase: Count(0)}
}

func TestConsumptionDates_EarliestWins(t *testing.T) {
	c := NewCalculator()
	orders := []Order{
		exhaust(10, "2025-01-15T10:00:00+09:00"),
		exhaust(10, "2025-01-10T10:00:00+09:00"),
		{MembershipID: 10, OrderTime: "2025-01-05T10:00:00+09:00", RemainCountAfterPurchase: Count(3)},
		exhaust(11, "bad timestamp"),
		{MembershipID: 0, OrderTime: "2025-01-05T10:00:00+09:00"},
	}

	got := c.ConsumptionDates(orders)

	assert.Equal(t, map[int64]string{10: "2025-01-10"}, got)
}

func TestConsumptionDates_UnknownRemainCountIsNotConsumption(t *testing.T) {
	var orders []Order
	require.NoError(t, json.Unmarshal([]byte(`[
		{"user_name":"M","order_time":"2025-01-05T10:00:00+09:00","membership_id":7,"remain_count_after_purchase":null},
		{"user_name":"M","order_time":"2025-01-05T10:00:00+09:00","membership_id":8},
		{"user_name":"M","order_time":"2025-01-06T10:00:00+09:00","membership_id":9,"remain_count_after_purchase":0}
	]`), &orders))

	c := NewCalculator()
	assert.Equal(t, map[int64]string{9: "2025-01-06"}, c.ConsumptionDates(orders))

	var memberships []Membership
	require.NoError(t, json.Unmarshal([]byte(`[{"id":1,"remain_count":null},{"id":2},{"id":3,"remain_count":0}]`), &memberships))
	assert.False(t, memberships[0].Consumed())
	assert.False(t, memberships[1].Consumed())
	assert.True(t, memberships[2].Consumed())

	member := Member{ID: 1, Name: "M", Memberships: []Membership{
		{ID: 7, Name: "10회권", CreatedAt: "2025-01-01", RemainCount: Count(0)},
		{ID: 8, Name: "10회권", CreatedAt: "2025-01-02"},
		{ID: 9, Name: "10회권", CreatedAt: "2025-01-03"},
	}}
	res := c.AvgConsumptionPeriod([]Member{member}, orders[:2], DateRange{})
	assert.Empty(t, res.UserDetails)
	rate := c.RepurchaseRate([]Member{member}, orders[:2], DateRange{})
	assert.Equal(t, 0, rate.EligibleMembers)

	unflagged := Member{ID: 2, Name: "N", Memberships: []Membership{
		{ID: 9, Name: "10회권", CreatedAt: "2025-01-01"},
		{ID: 10, Name: "10회권", CreatedAt: "2025-01-20"},
	}}
	periods := c.AvgRepurchasePeriod([]Member{unflagged}, orders, DateRange{})
	assert.Empty(t, periods.UserPeriods)
}

func TestAvgRepurchasePeriod_Scenario(t *testing.T) {
	c := NewCalculator()
	members := []Member{memberM()}
	orders := []Order{exhaust(10, "2025-01-10T12:00:00+09:00")}

	assert.Equal(t, "2025-01-10", c.ConsumptionDates(orders)[10])

	res := c.AvgRepurchasePeriod(members, orders, DateRange{})
	require.Len(t, res.UserPeriods, 1)
	require.Len(t, res.UserPeriods[0].Periods, 1)

	p := res.UserPeriods[0].Periods[0]
	assert.Equal(t, int64(10), p.MembershipID)
	assert.Equal(t, int64(20), p.NextMembershipID)
	assert.Equal(t, "2025-01-10", p.ConsumptionDate)
	assert.Equal(t, "2025-01-20", p.RepurchaseDate)
	assert.Equal(t, 10, p.Days)
	assert.Equal(t, 10.0, res.UserPeriods[0].AvgDays)
	assert.Equal(t, 10.0, res.TotalAvgDays)
}

func TestAvgRepurchasePeriod_Filters(t *testing.T) {
	c := NewCalculator()

	t.Run("repurchase outside range is dropped", func(t *testing.T) {
		res := c.AvgRepurchasePeriod([]Member{memberM()},
			[]Order{exhaust(10, "2025-01-10T12:00:00+09:00")},
			DateRange{StartDate: "2025-02-01", EndDate: "2025-02-28"})
		assert.Empty(t, res.UserPeriods)
		assert.Equal(t, 0.0, res.TotalAvgDays)
	})

	t.Run("negative period is dropped", func(t *testing.T) {
		res := c.AvgRepurchasePeriod([]Member{memberM()},
			[]Order{exhaust(10, "2025-01-25T12:00:00+09:00")}, DateRange{})
		assert.Empty(t, res.UserPeriods)
	})

	t.Run("membership not flagged consumed is skipped", func(t *testing.T) {
		m := memberM()
		m.Memberships[1].RemainCount = Count(2)
		res := c.AvgRepurchasePeriod([]Member{m},
			[]Order{exhaust(10, "2025-01-10T12:00:00+09:00")}, DateRange{})
		assert.Empty(t, res.UserPeriods)
	})

	t.Run("missing created_at is skipped", func(t *testing.T) {
		m := memberM()
		m.Memberships[0].CreatedAt = ""
		res := c.AvgRepurchasePeriod([]Member{m},
			[]Order{exhaust(10, "2025-01-10T12:00:00+09:00")}, DateRange{})
		assert.Empty(t, res.UserPeriods)
	})
}

func TestAvgRepurchasePeriod_MeanOverAllPeriods(t *testing.T) {
	c := NewCalculator()
	members := []Member{
		memberM(),
		{
			ID:   2,
			Name: "N",
			Memberships: []Membership{
				{ID: 30, Name: "A", CreatedAt: "2025-01-01", RemainCount: Count(0)},
				{ID: 31, Name: "A", CreatedAt: "2025-01-11", RemainCount: Count(0)},
				{ID: 32, Name: "A", CreatedAt: "2025-01-31", RemainCount: Count(5)},
			},
		},
	}
	orders := []Order{
		exhaust(10, "2025-01-10T12:00:00"),
		exhaust(30, "2025-01-05T12:00:00"),
		exhaust(31, "2025-01-21T12:00:00"),
	}

	res := c.AvgRepurchasePeriod(members, orders, DateRange{})

	// periods: M 10, N 6 and 10
	assert.Equal(t, 3, res.PeriodCount)
	assert.Equal(t, 8.7, res.TotalAvgDays)
	require.Len(t, res.UserPeriods, 2)
	assert.Equal(t, 8.0, res.UserPeriods[1].AvgDays)
}

func TestRepurchaseRate(t *testing.T) {
	c := NewCalculator()
	members := []Member{
		memberM(),
		{
			ID:   2,
			Name: "N",
			Memberships: []Membership{
				{ID: 30, Name: "A", CreatedAt: "2025-01-01", RemainCount: Count(0)},
				{ID: 31, Name: "A", CreatedAt: "2025-03-02", RemainCount: Count(3)},
			},
		},
		{
			ID:          3,
			Name:        "solo",
			Memberships: []Membership{{ID: 40, Name: "A", CreatedAt: "2025-01-01", RemainCount: Count(0)}},
		},
	}
	orders := []Order{
		exhaust(10, "2025-01-10T12:00:00"),
		exhaust(30, "2025-01-28T12:00:00"),
		exhaust(40, "2025-01-15T12:00:00"),
	}

	t.Run("january window", func(t *testing.T) {
		res := c.RepurchaseRate(members, orders, DateRange{StartDate: "2025-01-01", EndDate: "2025-01-31"})
		assert.Equal(t, 2, res.EligibleMembers)
		assert.Equal(t, 1, res.RepurchasedMembers)
		assert.Equal(t, 50.0, res.Rate)
		assert.Equal(t, "50.0%", res.RateText)
	})

	t.Run("no range", func(t *testing.T) {
		res := c.RepurchaseRate(members, orders, DateRange{})
		assert.Equal(t, 2, res.EligibleMembers)
		assert.Equal(t, 2, res.RepurchasedMembers)
		assert.Equal(t, "100.0%", res.RateText)
	})

	t.Run("no eligible members", func(t *testing.T) {
		res := c.RepurchaseRate(members, orders, DateRange{StartDate: "2026-01-01", EndDate: "2026-12-31"})
		assert.Equal(t, 0, res.EligibleMembers)
		assert.Equal(t, 0.0, res.Rate)
		assert.Equal(t, "0.0%", res.RateText)
	})
}

func TestAvgConsumptionPeriod(t *testing.T) {
	c := NewCalculator()
	members := []Member{
		memberM(),
		{
			ID:   2,
			Name: "N",
			Memberships: []Membership{
				{ID: 30, Name: "30일권", CreatedAt: "2025-01-01", RemainCount: Count(0)},
				{ID: 31, Name: "10회권", CreatedAt: "not a date", RemainCount: Count(0)},
			},
		},
	}
	orders := []Order{
		exhaust(10, "2025-01-10T12:00:00"),
		exhaust(30, "2025-01-31T12:00:00"),
		exhaust(31, "2025-01-31T12:00:00"),
	}

	res := c.AvgConsumptionPeriod(members, orders, DateRange{})

	require.Len(t, res.UserDetails, 2)
	assert.Equal(t, ConsumptionDetail{
		MemberID: 1, MemberName: "M", MembershipID: 10, TicketName: "10회권",
		PurchaseDate: "2025-01-01", ConsumptionDate: "2025-01-10", Days: 9,
	}, res.UserDetails[0])
	assert.Equal(t, 30, res.UserDetails[1].Days)

	require.Len(t, res.TicketAverages, 2)
	assert.Equal(t, TicketConsumption{TicketName: "10회권", Memberships: 1, AvgDays: 9}, res.TicketAverages[0])
	assert.Equal(t, TicketConsumption{TicketName: "30일권", Memberships: 1, AvgDays: 30}, res.TicketAverages[1])
}

func TestConsumedTwice_DateUsesEarliestPeriodUsesLongest(t *testing.T) {
	c := NewCalculator()
	members := []Member{memberM()}
	orders := []Order{
		exhaust(10, "2025-01-25T12:00:00"),
		exhaust(10, "2025-01-10T12:00:00"),
	}

	assert.Equal(t, "2025-01-10", c.ConsumptionDates(orders)[10])

	res := c.AvgConsumptionPeriod(members, orders, DateRange{})
	require.Len(t, res.UserDetails, 1)
	assert.Equal(t, 24, res.UserDetails[0].Days)
	assert.Equal(t, "2025-01-25", res.UserDetails[0].ConsumptionDate)

	// the range excludes the later re-exhaustion
	early := c.AvgConsumptionPeriod(members, orders, DateRange{EndDate: "2025-01-15"})
	require.Len(t, early.UserDetails, 1)
	assert.Equal(t, 9, early.UserDetails[0].Days)
}

func TestLifecycle_EmptyInputs(t *testing.T) {
	c := NewCalculator()

	assert.Empty(t, c.ConsumptionDates(nil))

	rate := c.RepurchaseRate(nil, nil, DateRange{})
	assert.Equal(t, RepurchaseRateResult{RateText: "0.0%"}, rate)

	period := c.AvgRepurchasePeriod(nil, nil, DateRange{})
	assert.Empty(t, period.UserPeriods)
	assert.Equal(t, 0.0, period.TotalAvgDays)

	cons := c.AvgConsumptionPeriod(nil, nil, DateRange{})
	assert.Empty(t, cons.TicketAverages)
	assert.Empty(t, cons.UserDetails)
}

func TestLifecycle_DoesNotMutateInput(t *testing.T) {
	c := NewCalculator()
	members := []Member{memberM()}
	orders := []Order{exhaust(10, "2025-01-10T12:00:00")}

	first := c.AvgRepurchasePeriod(members, orders, DateRange{})
	assert.Equal(t, int64(20), members[0].Memberships[0].ID, "memberships are sorted on a copy")
	assert.Equal(t, first, c.AvgRepurchasePeriod(members, orders, DateRange{}))
}
