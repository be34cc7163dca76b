package kpi

import (
	"sort"
	"strconv"
	"time"
)

// RepurchaseRateResult is the share of eligible members who bought again.
type RepurchaseRateResult struct {
	EligibleMembers    int     `json:"eligible_members"`
	RepurchasedMembers int     `json:"repurchased_members"`
	Rate               float64 `json:"rate"`
	RateText           string  `json:"rate_text"`
}

// RepurchasePeriod is the gap between using up one membership and buying
// the next one.
type RepurchasePeriod struct {
	MembershipID     int64  `json:"membership_id"`
	TicketName       string `json:"ticket_name"`
	ConsumptionDate  string `json:"consumption_date"`
	NextMembershipID int64  `json:"next_membership_id"`
	NextTicketName   string `json:"next_ticket_name"`
	RepurchaseDate   string `json:"repurchase_date"`
	Days             int    `json:"days"`
}

// MemberRepurchase collects one member's repurchase periods.
type MemberRepurchase struct {
	MemberID   int64              `json:"member_id"`
	MemberName string             `json:"member_name"`
	Periods    []RepurchasePeriod `json:"periods"`
	AvgDays    float64            `json:"avg_days"`
}

// RepurchasePeriodResult is the output of AvgRepurchasePeriod.
type RepurchasePeriodResult struct {
	UserPeriods  []MemberRepurchase `json:"user_periods"`
	TotalAvgDays float64            `json:"total_avg_days"`
	PeriodCount  int                `json:"period_count"`
}

// TicketConsumption averages consumption duration per plan name.
type TicketConsumption struct {
	TicketName  string  `json:"ticket_name"`
	Memberships int     `json:"memberships"`
	AvgDays     float64 `json:"avg_days"`
}

// ConsumptionDetail is one membership's longest observed consumption span.
type ConsumptionDetail struct {
	MemberID        int64  `json:"member_id"`
	MemberName      string `json:"member_name"`
	MembershipID    int64  `json:"membership_id"`
	TicketName      string `json:"ticket_name"`
	PurchaseDate    string `json:"purchase_date"`
	ConsumptionDate string `json:"consumption_date"`
	Days            int    `json:"days"`
}

// ConsumptionPeriodResult is the output of AvgConsumptionPeriod.
type ConsumptionPeriodResult struct {
	TicketAverages []TicketConsumption `json:"ticket_averages"`
	UserDetails    []ConsumptionDetail `json:"user_details"`
}

// ConsumptionDates maps each membership id to the business day of the
// earliest order that left it with zero uses. The whole order set is scanned
// and no date filter applies; at most one date is kept per membership.
func (c *Calculator) ConsumptionDates(orders []Order) map[int64]string {
	earliest := make(map[int64]time.Time)
	for _, o := range orders {
		if !o.Exhausted() {
			continue
		}
		t, ok := c.zone.ParseTimestamp(o.OrderTime)
		if !ok {
			continue
		}
		if prev, seen := earliest[o.MembershipID]; !seen || t.Before(prev) {
			earliest[o.MembershipID] = t
		}
	}
	out := make(map[int64]string, len(earliest))
	for id, t := range earliest {
		out[id] = c.zone.Day(t)
	}
	return out
}

// RepurchaseRate returns the percentage of members with a consumed
// membership followed by another one. A member is eligible when some
// membership has a successor (by id) and a consumption date inside rng; it
// counts as repurchased when that successor's purchase day is also inside
// rng. A zero range filters neither side.
func (c *Calculator) RepurchaseRate(members []Member, orders []Order, rng DateRange) RepurchaseRateResult {
	consumed := c.ConsumptionDates(orders)
	res := RepurchaseRateResult{}
	for _, m := range members {
		ships := sortedMemberships(m.Memberships)
		eligible, repurchased := false, false
		for i := 0; i+1 < len(ships); i++ {
			day, ok := consumed[ships[i].ID]
			if !ok || !rng.Contains(day) {
				continue
			}
			eligible = true
			if rng.IsZero() {
				repurchased = true
				break
			}
			if next, ok := c.zone.DayOf(ships[i+1].CreatedAt); ok && rng.Contains(next) {
				repurchased = true
				break
			}
		}
		if eligible {
			res.EligibleMembers++
		}
		if repurchased {
			res.RepurchasedMembers++
		}
	}
	if res.EligibleMembers > 0 {
		res.Rate = round(float64(res.RepurchasedMembers)/float64(res.EligibleMembers)*100, 1)
	}
	res.RateText = strconv.FormatFloat(res.Rate, 'f', 1, 64) + "%"
	return res
}

// AvgRepurchasePeriod measures, for every membership flagged consumed that
// has a successor, the days from its consumption date to the successor's
// purchase day. Negative gaps are data errors and are dropped. With a
// range, only periods whose repurchase day is inside it are kept.
func (c *Calculator) AvgRepurchasePeriod(members []Member, orders []Order, rng DateRange) RepurchasePeriodResult {
	consumed := c.ConsumptionDates(orders)
	res := RepurchasePeriodResult{UserPeriods: []MemberRepurchase{}}
	total := 0
	for _, m := range members {
		ships := sortedMemberships(m.Memberships)
		var periods []RepurchasePeriod
		for i := 0; i+1 < len(ships); i++ {
			cur, next := ships[i], ships[i+1]
			if !cur.Consumed() {
				continue
			}
			consumedOn, ok := consumed[cur.ID]
			if !ok {
				continue
			}
			boughtOn, ok := c.zone.DayOf(next.CreatedAt)
			if !ok || !rng.Contains(boughtOn) {
				continue
			}
			days, ok := DaysBetween(consumedOn, boughtOn)
			if !ok || days < 0 {
				continue
			}
			periods = append(periods, RepurchasePeriod{
				MembershipID:     cur.ID,
				TicketName:       cur.Name,
				ConsumptionDate:  consumedOn,
				NextMembershipID: next.ID,
				NextTicketName:   next.Name,
				RepurchaseDate:   boughtOn,
				Days:             days,
			})
		}
		if len(periods) == 0 {
			continue
		}
		sum := 0
		for _, p := range periods {
			sum += p.Days
		}
		total += sum
		res.PeriodCount += len(periods)
		res.UserPeriods = append(res.UserPeriods, MemberRepurchase{
			MemberID:   m.ID,
			MemberName: m.Name,
			Periods:    periods,
			AvgDays:    round(float64(sum)/float64(len(periods)), 1),
		})
	}
	if res.PeriodCount > 0 {
		res.TotalAvgDays = round(float64(total)/float64(res.PeriodCount), 1)
	}
	return res
}

// AvgConsumptionPeriod finds, per membership, the longest non-negative span
// between its purchase day and any order that left it at zero uses, then
// averages those spans per ticket name. With a range, only exhausting
// orders whose day is inside it contribute.
func (c *Calculator) AvgConsumptionPeriod(members []Member, orders []Order, rng DateRange) ConsumptionPeriodResult {
	type owner struct {
		member     Member
		membership Membership
		purchased  string
	}
	owners := make(map[int64]owner)
	for _, m := range members {
		for _, ms := range m.Memberships {
			day, ok := c.zone.DayOf(ms.CreatedAt)
			if !ok {
				continue
			}
			owners[ms.ID] = owner{member: m, membership: ms, purchased: day}
		}
	}

	best := make(map[int64]ConsumptionDetail)
	for _, o := range orders {
		if !o.Exhausted() {
			continue
		}
		own, ok := owners[o.MembershipID]
		if !ok {
			continue
		}
		day, ok := c.zone.DayOf(o.OrderTime)
		if !ok || !rng.Contains(day) {
			continue
		}
		days, ok := DaysBetween(own.purchased, day)
		if !ok || days < 0 {
			continue
		}
		if prev, seen := best[o.MembershipID]; seen && prev.Days >= days {
			continue
		}
		best[o.MembershipID] = ConsumptionDetail{
			MemberID:        own.member.ID,
			MemberName:      own.member.Name,
			MembershipID:    own.membership.ID,
			TicketName:      own.membership.Name,
			PurchaseDate:    own.purchased,
			ConsumptionDate: day,
			Days:            days,
		}
	}

	res := ConsumptionPeriodResult{
		TicketAverages: []TicketConsumption{},
		UserDetails:    make([]ConsumptionDetail, 0, len(best)),
	}
	for _, d := range best {
		res.UserDetails = append(res.UserDetails, d)
	}
	sort.Slice(res.UserDetails, func(i, j int) bool {
		a, b := res.UserDetails[i], res.UserDetails[j]
		if a.MemberName != b.MemberName {
			return a.MemberName < b.MemberName
		}
		return a.MembershipID < b.MembershipID
	})

	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, d := range res.UserDetails {
		sums[d.TicketName] += d.Days
		counts[d.TicketName]++
	}
	for name, n := range counts {
		res.TicketAverages = append(res.TicketAverages, TicketConsumption{
			TicketName:  name,
			Memberships: n,
			AvgDays:     round(float64(sums[name])/float64(n), 1),
		})
	}
	sort.Slice(res.TicketAverages, func(i, j int) bool {
		return res.TicketAverages[i].TicketName < res.TicketAverages[j].TicketName
	})
	return res
}

// sortedMemberships returns a copy ordered by id, the purchase sequence.
func sortedMemberships(in []Membership) []Membership {
	out := make([]Membership, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
