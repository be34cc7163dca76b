package kpi

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultPricePerCup is the flat revenue per order used by the dashboard.
var DefaultPricePerCup = decimal.NewFromInt(1800)

// CostTable maps product names to unit cost with a fallback for unknown names.
type CostTable struct {
	Units   map[string]decimal.Decimal
	Default decimal.Decimal
}

// UnitCost returns the cost of one unit of product. The raw name is tried
// first, then its display label, then Default.
func (t CostTable) UnitCost(product string) decimal.Decimal {
	if c, ok := t.Units[product]; ok {
		return c
	}
	if c, ok := t.Units[ProductLabel(product)]; ok {
		return c
	}
	return t.Default
}

// Pricing is the revenue and cost model for the basic KPI report.
type Pricing struct {
	PricePerCup decimal.Decimal
	Costs       CostTable
}

// Calculator runs the KPI pipeline under one business zone and pricing model.
// It has no mutable state and is safe for concurrent use.
type Calculator struct {
	zone    BusinessZone
	pricing Pricing
	lang    language.Tag
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithZone sets the business timezone.
func WithZone(z BusinessZone) Option {
	return func(c *Calculator) {
		c.zone = z
	}
}

// WithPricing sets the revenue/cost model.
func WithPricing(p Pricing) Option {
	return func(c *Calculator) {
		c.pricing = p
	}
}

// WithLanguage sets the locale used for display strings.
func WithLanguage(tag language.Tag) Option {
	return func(c *Calculator) {
		c.lang = tag
	}
}

// NewCalculator creates a Calculator. Defaults: +09:00, 1800 per cup, zero
// default cost, Korean number formatting.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		zone:    DefaultBusinessZone(),
		pricing: Pricing{PricePerCup: DefaultPricePerCup},
		lang:    language.Korean,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Zone returns the business zone.
func (c *Calculator) Zone() BusinessZone {
	return c.zone
}

// Pricing returns the revenue/cost model.
func (c *Calculator) Pricing() Pricing {
	return c.pricing
}

// FilterOrders keeps orders matching the scope. Orders whose timestamp
// cannot be parsed are dropped only when a date range is set.
func (c *Calculator) FilterOrders(orders []Order, scope Scope) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		if scope.Store != "" && o.StoreName != scope.Store {
			continue
		}
		if scope.User != "" && o.UserName != scope.User {
			continue
		}
		if !scope.Range.IsZero() {
			day, ok := c.zone.DayOf(o.OrderTime)
			if !ok || !scope.Range.Contains(day) {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// ProductLabel collapses escaped and real newlines in a product name to a
// single space for display.
func ProductLabel(name string) string {
	label := strings.ReplaceAll(name, `\n`, " ")
	label = strings.ReplaceAll(label, "\r\n", " ")
	label = strings.ReplaceAll(label, "\n", " ")
	return strings.Join(strings.Fields(label), " ")
}

func (c *Calculator) formatMoney(d decimal.Decimal) string {
	p := message.NewPrinter(c.lang)
	f, _ := d.Round(2).Float64()
	return p.Sprint(number.Decimal(f, number.MaxFractionDigits(2)))
}

func (c *Calculator) formatInt(n int) string {
	p := message.NewPrinter(c.lang)
	return p.Sprint(number.Decimal(n))
}
