// Package kpi computes dashboard KPIs from order and membership snapshots.
//
// Everything in this package is a pure function of its inputs: calculators
// never mutate the slices they receive and never keep state between calls.
// Malformed records (unparseable timestamps, missing membership ids) are
// skipped rather than reported, so every calculator is total over historical
// data.
package kpi

// ProductTime tells when, relative to a workout, a drink was ordered.
type ProductTime string

const (
	ProductTimePre    ProductTime = "pre"
	ProductTimeDuring ProductTime = "during"
	ProductTimePost   ProductTime = "post"
)

// Order is a single vending order as returned by the orders resource.
// Timestamps are kept as received; the engine parses them itself.
type Order struct {
	StoreName                string      `json:"store_name"`
	ProductName              string      `json:"product_name"`
	ProductCount             int         `json:"product_count"`
	OrderTime                string      `json:"order_time"`
	UserName                 string      `json:"user_name"`
	ProductTime              ProductTime `json:"product_time"`
	Barcode                  string      `json:"barcode"`
	MembershipID             int64       `json:"membership_id"`
	RemainCountAfterPurchase *int        `json:"remain_count_after_purchase"`
	TotalCountAtPurchase     int         `json:"total_count_at_purchase"`
}

// Member is a registered customer with their purchased memberships.
type Member struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Phone       string       `json:"phone"`
	Birth       string       `json:"birth"`
	Gender      string       `json:"gender"`
	Memberships []Membership `json:"memberships"`
}

// Membership is a purchased ticket/plan. Name is the plan label.
type Membership struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CreatedAt   string `json:"created_at"`
	TotalCount  int    `json:"total_count"`
	RemainCount *int   `json:"remain_count"`
}

// Count returns a pointer to n for the optional remaining-use fields.
func Count(n int) *int {
	return &n
}

// Consumed reports whether the membership record itself has no uses left.
// An unknown remaining count is never treated as consumed.
func (m Membership) Consumed() bool {
	return m.RemainCount != nil && *m.RemainCount == 0
}

// Exhausted reports whether the order drained its membership to zero.
// Orders without a remaining count carry no consumption signal.
func (o Order) Exhausted() bool {
	return o.MembershipID != 0 && o.RemainCountAfterPurchase != nil && *o.RemainCountAfterPurchase == 0
}

// DateRange is an inclusive YYYY-MM-DD range. Empty bounds are open and the
// zero value matches every day.
type DateRange struct {
	StartDate string `json:"start_date" form:"start_date"`
	EndDate   string `json:"end_date" form:"end_date"`
}

// IsZero reports whether the range applies no filtering.
func (r DateRange) IsZero() bool {
	return r.StartDate == "" && r.EndDate == ""
}

// Contains reports whether day (YYYY-MM-DD) falls inside the range.
// Days are compared as strings, which orders correctly for this layout.
func (r DateRange) Contains(day string) bool {
	if day == "" {
		return r.IsZero()
	}
	if r.StartDate != "" && day < r.StartDate {
		return false
	}
	if r.EndDate != "" && day > r.EndDate {
		return false
	}
	return true
}

// Scope narrows an order snapshot to one store and/or one user over a range.
type Scope struct {
	Range DateRange
	Store string
	User  string
}
