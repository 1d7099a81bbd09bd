package models

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// SlotStatus is how a slot's day relates to today.
type SlotStatus string

const (
	StatusPast     SlotStatus = "past"
	StatusToday    SlotStatus = "today"
	StatusUpcoming SlotStatus = "upcoming"
	StatusUnknown  SlotStatus = "unknown"
)

// ParseDate parses YYYY-MM-DD as midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}

// ParseClock parses HH:MM and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// StartOfDay truncates t to local midnight of its calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayStatus compares the calendar day of d with that of now.
func DayStatus(d, now time.Time) SlotStatus {
	day := StartOfDay(d)
	today := StartOfDay(now)
	switch {
	case day.Before(today):
		return StatusPast
	case day.Equal(today):
		return StatusToday
	default:
		return StatusUpcoming
	}
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
