package kpi

import "sort"

// UserActivity is one user's distinct order days.
type UserActivity struct {
	UserName   string   `json:"user_name"`
	VisitDates []string `json:"visit_dates"`
	FirstVisit string   `json:"first_visit"`
	OrderCount int      `json:"order_count"`
}

// HasVisit reports whether the user ordered on day.
func (u UserActivity) HasVisit(day string) bool {
	i := sort.SearchStrings(u.VisitDates, day)
	return i < len(u.VisitDates) && u.VisitDates[i] == day
}

// GroupByUser collapses orders onto distinct business days per user.
// Orders with an empty user name or unparseable time are skipped. The
// result is sorted by first visit, then user name, and does not depend on
// the order of the input.
func (c *Calculator) GroupByUser(orders []Order) []UserActivity {
	days := make(map[string]map[string]struct{})
	counts := make(map[string]int)
	for _, o := range orders {
		if o.UserName == "" {
			continue
		}
		day, ok := c.zone.DayOf(o.OrderTime)
		if !ok {
			continue
		}
		set, exists := days[o.UserName]
		if !exists {
			set = make(map[string]struct{})
			days[o.UserName] = set
		}
		set[day] = struct{}{}
		counts[o.UserName]++
	}

	out := make([]UserActivity, 0, len(days))
	for user, set := range days {
		visits := make([]string, 0, len(set))
		for d := range set {
			visits = append(visits, d)
		}
		sort.Strings(visits)
		out = append(out, UserActivity{
			UserName:   user,
			VisitDates: visits,
			FirstVisit: visits[0],
			OrderCount: counts[user],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstVisit != out[j].FirstVisit {
			return out[i].FirstVisit < out[j].FirstVisit
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}
