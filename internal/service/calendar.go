package service

import (
	"time"

	"github.com/DukeRupert/convertly/internal/domain"
)

// Calendar decides which day "today" is for quota counters and
// entitlement expiries.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar returns a Calendar in loc. A nil now uses time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Calendar{loc: loc, now: now}
}

// Now returns the current instant.
func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// Today returns the current calendar day in the calendar's location.
func (c Calendar) Today() domain.Day {
	return domain.DayOf(c.Now(), c.loc)
}
