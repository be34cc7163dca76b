package kpi

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used for every day string.
const DayLayout = "2006-01-02"

// DefaultZoneOffset is the business timezone the dashboard data is generated in.
const DefaultZoneOffset = "+09:00"

// space-separated layouts that carry an offset, as databases print them
var offsetLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
}

// layouts without an explicit offset are interpreted in the business zone
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DayLayout,
}

// BusinessZone converts timestamps to business-local calendar days.
// All day truncation in the engine goes through one BusinessZone so that
// grouping, retention and date-range filtering agree near midnight.
type BusinessZone struct {
	loc *time.Location
}

// DefaultBusinessZone returns the +09:00 zone.
func DefaultBusinessZone() BusinessZone {
	return BusinessZone{loc: time.FixedZone("KST", 9*60*60)}
}

// NewBusinessZone builds a zone from an offset ("+09:00", "-0500") or an
// IANA name ("Asia/Seoul"). An empty string yields the default zone.
func NewBusinessZone(tz string) (BusinessZone, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return DefaultBusinessZone(), nil
	}
	if tz[0] == '+' || tz[0] == '-' {
		secs, err := parseOffset(tz)
		if err != nil {
			return BusinessZone{}, err
		}
		return BusinessZone{loc: time.FixedZone(tz, secs)}, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return BusinessZone{}, fmt.Errorf("load location %q: %w", tz, err)
	}
	return BusinessZone{loc: loc}, nil
}

func parseOffset(tz string) (int, error) {
	sign := 1
	if tz[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(tz[1:], ":", "")
	if len(body) != 2 && len(body) != 4 {
		return 0, fmt.Errorf("invalid zone offset %q", tz)
	}
	hours, err := strconv.Atoi(body[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid zone offset %q: %w", tz, err)
	}
	minutes := 0
	if len(body) == 4 {
		minutes, err = strconv.Atoi(body[2:])
		if err != nil {
			return 0, fmt.Errorf("invalid zone offset %q: %w", tz, err)
		}
	}
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("invalid zone offset %q", tz)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// Location returns the underlying location.
func (z BusinessZone) Location() *time.Location {
	if z.loc == nil {
		return DefaultBusinessZone().loc
	}
	return z.loc
}

// ParseTimestamp parses raw as an instant. Offsets in the string win;
// strings without one are read as business-local wall time.
func (z BusinessZone) ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, z.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Day returns the business-local calendar day of t.
func (z BusinessZone) Day(t time.Time) string {
	return t.In(z.Location()).Format(DayLayout)
}

// DayOf parses raw and truncates it to a business day.
func (z BusinessZone) DayOf(raw string) (string, bool) {
	t, ok := z.ParseTimestamp(raw)
	if !ok {
		return "", false
	}
	return z.Day(t), true
}

// AddDays shifts a YYYY-MM-DD day by n calendar days.
func AddDays(day string, n int) (string, bool) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, n).Format(DayLayout), true
}

// DaysBetween returns to minus from in whole calendar days.
func DaysBetween(from, to string) (int, bool) {
	a, err := time.Parse(DayLayout, from)
	if err != nil {
		return 0, false
	}
	b, err := time.Parse(DayLayout, to)
	if err != nil {
		return 0, false
	}
	return int(b.Sub(a).Hours() / 24), true
}
