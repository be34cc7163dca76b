package kpi

import (
	"fmt"
	"math"
	"strconv"
)

// RetentionDays is the number of day columns (Day0..Day70) in a retention row.
const RetentionDays = 71

// RetentionCheckpoints are the day offsets the retention ratio is computed over.
var RetentionCheckpoints = []int{7, 14, 21}

// RetentionRow is one user's daily activity relative to their first visit.
type RetentionRow struct {
	UserName   string              `json:"user_name"`
	FirstVisit string              `json:"first_visit"`
	Days       [RetentionDays]bool `json:"days"`
	VisitCount int                 `json:"visit_count"`
	Ratio      float64             `json:"ratio"`
	RatioText  string              `json:"ratio_text"`
}

// Visited reports whether the user ordered offset days after the first visit.
func (r RetentionRow) Visited(offset int) bool {
	if offset < 0 || offset >= RetentionDays {
		return false
	}
	return r.Days[offset]
}

// CohortSummaryRow aggregates one checkpoint across all users.
type CohortSummaryRow struct {
	Checkpoint  int     `json:"checkpoint"`
	Label       string  `json:"label"`
	ActiveUsers int     `json:"active_users"`
	TotalUsers  int     `json:"total_users"`
	Rate        float64 `json:"rate"`
	RateText    string  `json:"rate_text"`
}

// RetentionTable builds one row per user with Day0..Day70 visit flags and
// the fraction of checkpoints with a visit, rounded to two decimals.
func (c *Calculator) RetentionTable(orders []Order) []RetentionRow {
	users := c.GroupByUser(orders)
	rows := make([]RetentionRow, 0, len(users))
	for _, u := range users {
		row := RetentionRow{
			UserName:   u.UserName,
			FirstVisit: u.FirstVisit,
			VisitCount: len(u.VisitDates),
		}
		for d := 0; d < RetentionDays; d++ {
			row.Days[d] = visitedOn(u, d)
		}
		hits := 0
		for _, cp := range RetentionCheckpoints {
			if row.Days[cp] {
				hits++
			}
		}
		row.Ratio = round(float64(hits)/float64(len(RetentionCheckpoints)), 2)
		row.RatioText = strconv.FormatFloat(row.Ratio, 'f', 2, 64)
		rows = append(rows, row)
	}
	return rows
}

// CohortSummary counts, per checkpoint, users who ordered exactly that many
// days after their first visit. The denominator is every distinct user;
// users whose checkpoint lies in the future count as not visited.
func (c *Calculator) CohortSummary(orders []Order) []CohortSummaryRow {
	users := c.GroupByUser(orders)
	total := len(users)
	out := make([]CohortSummaryRow, 0, len(RetentionCheckpoints))
	for _, cp := range RetentionCheckpoints {
		active := 0
		for _, u := range users {
			if visitedOn(u, cp) {
				active++
			}
		}
		rate := 0.0
		if total > 0 {
			rate = round(float64(active)/float64(total)*100, 1)
		}
		out = append(out, CohortSummaryRow{
			Checkpoint:  cp,
			Label:       fmt.Sprintf("Day%d", cp),
			ActiveUsers: active,
			TotalUsers:  total,
			Rate:        rate,
			RateText:    strconv.FormatFloat(rate, 'f', 1, 64) + "%",
		})
	}
	return out
}

func visitedOn(u UserActivity, offset int) bool {
	day, ok := AddDays(u.FirstVisit, offset)
	return ok && u.HasVisit(day)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
