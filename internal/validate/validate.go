// Package validate checks user and slot input before it is sent to the API.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"schedulink/internal/models"
)

const (
	minNameLen     = 2
	minTitleLen    = 3
	minSlotMinutes = 15
)

var (
	emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s()-]+$`)
)

// ValidationError maps a field name to its message.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field failed.
func (e *ValidationError) Has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Message returns the message for field.
func (e *ValidationError) Message(field string) string {
	return e.Fields[field]
}

type collector map[string]string

func (c collector) add(field, msg string) {
	if _, ok := c[field]; !ok {
		c[field] = msg
	}
}

func (c collector) err() error {
	if len(c) == 0 {
		return nil
	}
	return &ValidationError{Fields: map[string]string(c)}
}

// Validator holds the clock used for date checks.
type Validator struct {
	now func() time.Time
}

// New returns a Validator using now, or time.Now when nil.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

var std = New(nil)

// ValidateUser checks a user form.
func ValidateUser(u models.NewUser) error {
	return std.User(u)
}

// ValidateSlot checks a slot form against the current local date.
func ValidateSlot(s models.NewSlot) error {
	return std.Slot(s)
}

// ValidateSlotUpdate checks only the fields present in u.
func ValidateSlotUpdate(current models.Slot, u models.SlotUpdate) error {
	return std.SlotUpdate(current, u)
}

// User checks name, email and phone.
func (v *Validator) User(u models.NewUser) error {
	errs := collector{}

	name := strings.TrimSpace(u.Name)
	switch {
	case name == "":
		errs.add("name", "Name is required")
	case len([]rune(name)) < minNameLen:
		errs.add("name", fmt.Sprintf("Name must be at least %d characters", minNameLen))
	}

	switch {
	case strings.TrimSpace(u.Email) == "":
		errs.add("email", "Email is required")
	case !emailPattern.MatchString(u.Email):
		errs.add("email", "Email is invalid")
	}

	switch {
	case strings.TrimSpace(u.Phone) == "":
		errs.add("phone", "Phone is required")
	case !phonePattern.MatchString(u.Phone):
		errs.add("phone", "Phone number is invalid")
	}

	return errs.err()
}

// Slot checks title, date and the time window.
func (v *Validator) Slot(s models.NewSlot) error {
	errs := collector{}
	v.title(errs, s.Title)
	v.date(errs, s.Date)
	v.window(errs, s.StartTime, s.EndTime)
	return errs.err()
}

// SlotUpdate validates the merged result of applying u to current, reporting
// only fields that u touches.
func (v *Validator) SlotUpdate(current models.Slot, u models.SlotUpdate) error {
	errs := collector{}
	if u.Title != nil {
		v.title(errs, *u.Title)
	}
	if u.Date != nil {
		v.date(errs, *u.Date)
	}
	if u.StartTime != nil || u.EndTime != nil {
		start, end := current.StartTime, current.EndTime
		if u.StartTime != nil {
			start = *u.StartTime
		}
		if u.EndTime != nil {
			end = *u.EndTime
		}
		v.window(errs, start, end)
	}
	return errs.err()
}

func (v *Validator) title(errs collector, title string) {
	t := strings.TrimSpace(title)
	switch {
	case t == "":
		errs.add("title", "Title is required")
	case len([]rune(t)) < minTitleLen:
		errs.add("title", fmt.Sprintf("Title must be at least %d characters", minTitleLen))
	}
}

func (v *Validator) date(errs collector, date string) {
	if strings.TrimSpace(date) == "" {
		errs.add("date", "Date is required")
		return
	}
	now := v.now()
	d, err := models.ParseDate(date, now.Location())
	if err != nil {
		errs.add("date", "Date is invalid")
		return
	}
	if d.Before(models.StartOfDay(now)) {
		errs.add("date", "Date cannot be in the past")
	}
}

func (v *Validator) window(errs collector, startTime, endTime string) {
	var (
		start, end     int
		startOK, endOK bool
		err            error
	)

	if strings.TrimSpace(startTime) == "" {
		errs.add("start_time", "Start time is required")
	} else if start, err = models.ParseClock(startTime); err != nil {
		errs.add("start_time", "Start time is invalid")
	} else {
		startOK = true
	}

	if strings.TrimSpace(endTime) == "" {
		errs.add("end_time", "End time is required")
	} else if end, err = models.ParseClock(endTime); err != nil {
		errs.add("end_time", "End time is invalid")
	} else {
		endOK = true
	}

	if !startOK || !endOK {
		return
	}
	if end <= start {
		errs.add("end_time", "End time must be after start time")
		return
	}
	if end-start < minSlotMinutes {
		errs.add("end_time", fmt.Sprintf("Slot duration must be at least %d minutes", minSlotMinutes))
	}
}
