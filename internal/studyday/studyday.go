// Package studyday computes study-day boundaries. A study day starts at a
// configurable reset hour instead of midnight, so late-night sessions count
// toward the day they began in.
package studyday

import (
	"fmt"
	"time"
)

const (
	DefaultResetHour = 5
	DateLayout       = "2006-01-02"
)

// Calendar resolves study days in one location.
type Calendar struct {
	ResetHour int
	Location  *time.Location
}

// New returns a Calendar. Out-of-range hours fall back to DefaultResetHour.
func New(resetHour int, location *time.Location) Calendar {
	if resetHour < 0 || resetHour > 23 {
		resetHour = DefaultResetHour
	}
	if location == nil {
		location = time.Local
	}
	return Calendar{ResetHour: resetHour, Location: location}
}

// Start returns the beginning of the study day containing t.
func (c Calendar) Start(t time.Time) time.Time {
	local := t.In(c.Location)
	if local.Hour() < c.ResetHour {
		local = local.AddDate(0, 0, -1)
	}
	return c.CalendarStart(local)
}

// End returns the last instant of the study day containing t.
func (c Calendar) End(t time.Time) time.Time {
	return c.Start(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// SameDay reports whether a and b fall within the same study day.
func (c Calendar) SameDay(a, b time.Time) bool {
	return c.Start(a).Equal(c.Start(b))
}

// CalendarStart returns the reset hour of date's calendar day, regardless of
// the time of day in date.
func (c Calendar) CalendarStart(date time.Time) time.Time {
	local := date.In(c.Location)
	return time.Date(local.Year(), local.Month(), local.Day(), c.ResetHour, 0, 0, 0, c.Location)
}

// CalendarEnd returns the last instant of the study day that starts on date.
func (c Calendar) CalendarEnd(date time.Time) time.Time {
	return c.CalendarStart(date).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// ParseDate parses a YYYY-MM-DD date in the calendar's location.
func (c Calendar) ParseDate(raw string) (time.Time, error) {
	date, err := time.ParseInLocation(DateLayout, raw, c.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse study date %q: %w", raw, err)
	}
	return date, nil
}

// Label formats the study day containing t as YYYY-MM-DD.
func (c Calendar) Label(t time.Time) string {
	return c.Start(t).Format(DateLayout)
}
