package kpi

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ActiveUser is a user with orders on at least two distinct days.
type ActiveUser struct {
	UserName   string `json:"user_name"`
	VisitDays  int    `json:"visit_days"`
	OrderCount int    `json:"order_count"`
}

// ProductRow aggregates sales of one product. Money fields are kept raw for
// further computation; Display carries the locale-formatted strings.
type ProductRow struct {
	ProductName string          `json:"product_name"`
	Label       string          `json:"label"`
	Count       int             `json:"count"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Revenue     decimal.Decimal `json:"revenue"`
	Cost        decimal.Decimal `json:"cost"`
	Profit      decimal.Decimal `json:"profit"`
	Display     ProductDisplay  `json:"display"`
}

// ProductDisplay holds formatted ProductRow values.
type ProductDisplay struct {
	Count     string `json:"count"`
	UnitPrice string `json:"unit_price"`
	Revenue   string `json:"revenue"`
	Cost      string `json:"cost"`
	Profit    string `json:"profit"`
}

// BasicKPIResult is the headline KPI block of the dashboard.
type BasicKPIResult struct {
	ActiveUserCount  int             `json:"active_user_count"`
	AvgCupsPerActive float64         `json:"avg_cups_per_active"`
	TotalOrders      int             `json:"total_orders"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	AvgMarginPerCup  decimal.Decimal `json:"avg_margin_per_cup"`
	ActiveUsers      []ActiveUser    `json:"active_users"`
	Products         []ProductRow    `json:"products"`
}

// ActiveCupCount returns the number of orders placed by active users.
func (r BasicKPIResult) ActiveCupCount() int {
	n := 0
	for _, u := range r.ActiveUsers {
		n += u.OrderCount
	}
	return n
}

// BasicKPI computes active users, cups per active user, and per-product
// revenue, cost and margin. Every order record counts as one cup priced at
// PricePerCup.
func (c *Calculator) BasicKPI(orders []Order) BasicKPIResult {
	res := BasicKPIResult{
		TotalOrders:     len(orders),
		TotalRevenue:    decimal.Zero,
		TotalCost:       decimal.Zero,
		AvgMarginPerCup: decimal.Zero,
		ActiveUsers:     []ActiveUser{},
		Products:        []ProductRow{},
	}

	activeCups := 0
	for _, u := range c.GroupByUser(orders) {
		if len(u.VisitDates) < 2 {
			continue
		}
		res.ActiveUsers = append(res.ActiveUsers, ActiveUser{
			UserName:   u.UserName,
			VisitDays:  len(u.VisitDates),
			OrderCount: u.OrderCount,
		})
		activeCups += u.OrderCount
	}
	res.ActiveUserCount = len(res.ActiveUsers)
	if res.ActiveUserCount > 0 {
		res.AvgCupsPerActive = float64(activeCups) / float64(res.ActiveUserCount)
	}
	sort.SliceStable(res.ActiveUsers, func(i, j int) bool {
		if res.ActiveUsers[i].OrderCount != res.ActiveUsers[j].OrderCount {
			return res.ActiveUsers[i].OrderCount > res.ActiveUsers[j].OrderCount
		}
		return res.ActiveUsers[i].UserName < res.ActiveUsers[j].UserName
	})

	counts := make(map[string]int)
	for _, o := range orders {
		counts[o.ProductName]++
	}
	price := c.pricing.PricePerCup
	for name, n := range counts {
		qty := decimal.NewFromInt(int64(n))
		unitCost := c.pricing.Costs.UnitCost(name)
		row := ProductRow{
			ProductName: name,
			Label:       ProductLabel(name),
			Count:       n,
			UnitPrice:   price,
			UnitCost:    unitCost,
			Revenue:     price.Mul(qty),
			Cost:        unitCost.Mul(qty),
		}
		row.Profit = row.Revenue.Sub(row.Cost)
		row.Display = ProductDisplay{
			Count:     c.formatInt(row.Count),
			UnitPrice: c.formatMoney(row.UnitPrice),
			Revenue:   c.formatMoney(row.Revenue),
			Cost:      c.formatMoney(row.Cost),
			Profit:    c.formatMoney(row.Profit),
		}
		res.TotalRevenue = res.TotalRevenue.Add(row.Revenue)
		res.TotalCost = res.TotalCost.Add(row.Cost)
		res.Products = append(res.Products, row)
	}
	sort.Slice(res.Products, func(i, j int) bool {
		if res.Products[i].Count != res.Products[j].Count {
			return res.Products[i].Count > res.Products[j].Count
		}
		return res.Products[i].ProductName < res.Products[j].ProductName
	})

	if res.TotalOrders > 0 {
		total := decimal.NewFromInt(int64(res.TotalOrders))
		res.AvgMarginPerCup = total.Mul(price).Sub(res.TotalCost).Div(total)
	}
	return res
}

// FormatMoney renders an amount with locale grouping, e.g. 12,600.
func (c *Calculator) FormatMoney(d decimal.Decimal) string {
	return c.formatMoney(d)
}
