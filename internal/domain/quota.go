// Package domain contains core business types and interfaces.
//
// This file defines the calendar day used to key usage counters and
// entitlement expiries, plus the quota decision returned by the quota gate.
package domain

import (
	"fmt"
	"time"
)

// DefaultDailyLimit is the number of free conversions per client IP per day.
const DefaultDailyLimit = 3

// dayLayout is the zero-padded ISO date. Expiry checks compare these strings
// lexically, so every persisted day must go through Day.String.
const dayLayout = "2006-01-02"

// Day is a calendar date without a time component.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// DayOf returns the calendar day of t in loc. A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Dom: d}
}

// ParseDay parses a zero-padded ISO date ("2006-01-02").
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(dayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t, time.UTC), nil
}

// String formats the day as a zero-padded ISO date.
func (d Day) String() string {
	return d.Time().Format(dayLayout)
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n days later (earlier for negative n).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// QuotaDecision is the outcome of the quota gate for one conversion request.
type QuotaDecision struct {
	Admitted bool
	Premium  bool
	Used     int // counter value after this request (unchanged on deny)
	Limit    int
}

// QuotaUsage represents current usage against the daily limit.
type QuotaUsage struct {
	Day       Day
	Used      int
	Limit     int
	Remaining int
}

// NewQuotaUsage builds a QuotaUsage, clamping Remaining at zero.
func NewQuotaUsage(day Day, used, limit int) QuotaUsage {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaUsage{Day: day, Used: used, Limit: limit, Remaining: remaining}
}
