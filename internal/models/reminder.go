package models

import "time"

// ReminderStatus tracks a reminder from scheduling to delivery.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Reminder is a message due to a chat shortly before a slot it booked starts.
type Reminder struct {
	ID        int64
	SlotID    int64
	ChatID    int64
	UserID    int64
	RemindAt  time.Time
	Status    ReminderStatus
	Attempts  int
	LastError string
	SentAt    *time.Time
	CreatedAt time.Time
}
