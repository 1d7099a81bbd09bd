package models

import "time"

// User is a person who can own or book slots. Users are created on the
// server and never edited from this client.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// NewUser is the payload for POST /users.
type NewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Slot is a bookable time window on a given day.
type Slot struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Description    *string `json:"description"`
	Date           string  `json:"date"`       // YYYY-MM-DD
	StartTime      string  `json:"start_time"` // HH:MM
	EndTime        string  `json:"end_time"`   // HH:MM
	IsBooked       bool    `json:"is_booked"`
	UserID         *int64  `json:"user_id"`
	BookedByUserID *int64  `json:"booked_by_user_id"`
}

// NewSlot is the payload for POST /slots. Empty description and a zero
// assigned user are sent as null.
type NewSlot struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Date        string  `json:"date"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	UserID      *int64  `json:"user_id"`
}

// SlotUpdate is the payload for PUT /slots/{id}; nil fields are left as is.
type SlotUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	StartTime   *string `json:"start_time,omitempty"`
	EndTime     *string `json:"end_time,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u SlotUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Date == nil && u.StartTime == nil && u.EndTime == nil
}

// SlotFilter narrows GET /slots.
type SlotFilter struct {
	Date     string
	IsBooked *bool
	UserID   int64
}

// SlotState is the booking state of a slot as seen by the client.
type SlotState string

const (
	SlotAvailable SlotState = "available"
	SlotBooked    SlotState = "booked"
)

// State derives the lifecycle state from IsBooked.
func (s *Slot) State() SlotState {
	if s.IsBooked {
		return SlotBooked
	}
	return SlotAvailable
}

// Consistent reports whether BookedByUserID is set exactly when the slot is booked.
func (s *Slot) Consistent() bool {
	return s.IsBooked == (s.BookedByUserID != nil)
}

// MarkBooked sets the booked fields for userID.
func (s *Slot) MarkBooked(userID int64) {
	s.IsBooked = true
	s.BookedByUserID = &userID
}

// MarkAvailable clears the booked fields.
func (s *Slot) MarkAvailable() {
	s.IsBooked = false
	s.BookedByUserID = nil
}

// Clone returns a deep copy so pointer fields are not shared.
func (s Slot) Clone() Slot {
	out := s
	if s.Description != nil {
		d := *s.Description
		out.Description = &d
	}
	if s.UserID != nil {
		id := *s.UserID
		out.UserID = &id
	}
	if s.BookedByUserID != nil {
		id := *s.BookedByUserID
		out.BookedByUserID = &id
	}
	return out
}

// DescriptionText returns the description or an empty string.
func (s *Slot) DescriptionText() string {
	if s.Description == nil {
		return ""
	}
	return *s.Description
}

// BookedBy returns the booking user id or 0.
func (s *Slot) BookedBy() int64 {
	if s.BookedByUserID == nil {
		return 0
	}
	return *s.BookedByUserID
}

// Status classifies the slot by calendar day relative to now.
func (s *Slot) Status(now time.Time) SlotStatus {
	d, err := ParseDate(s.Date, now.Location())
	if err != nil {
		return StatusUnknown
	}
	return DayStatus(d, now)
}

// StartsAt combines Date and StartTime in loc.
func (s *Slot) StartsAt(loc *time.Location) (time.Time, error) {
	d, err := ParseDate(s.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	m, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return d.Add(time.Duration(m) * time.Minute), nil
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// Int64Ptr returns a pointer to v, or nil when v is zero.
func Int64Ptr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// StringPtr returns a pointer to v, or nil when v is blank.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool {
	return &v
}
