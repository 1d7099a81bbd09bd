package booking

import (
	"errors"
	"fmt"

	"schedulink/internal/apiclient"
	"schedulink/internal/models"
)

var (
	ErrUserRequired = errors.New("user is required to book a slot")
	ErrNotBooked    = errors.New("slot is not booked")
	ErrInFlight     = errors.New("another request for this slot is in progress")
	ErrUnknownSlot  = errors.New("slot is not loaded")
)

// AlreadyBookedError means the server refused a booking because someone else
// holds the slot.
type AlreadyBookedError struct {
	SlotID int64
	Detail string
	Err    error
}

func (e *AlreadyBookedError) Error() string {
	return fmt.Sprintf("slot %d is already booked", e.SlotID)
}

func (e *AlreadyBookedError) Unwrap() error {
	return e.Err
}

// Result is the outcome of a book or cancel: either the updated slot or the
// reason it failed.
type Result struct {
	Slot models.Slot
	Err  error
}

// Ok wraps a successful outcome.
func Ok(s models.Slot) Result {
	return Result{Slot: s}
}

// Fail wraps a failed outcome.
func Fail(err error) Result {
	return Result{Err: err}
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Reason is the message to show the person who pressed the button.
func (r Result) Reason() string {
	return Reason(r.Err)
}

// Reason maps controller and remote errors to display text.
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var booked *AlreadyBookedError
	if errors.As(err, &booked) {
		if booked.Detail != "" {
			return booked.Detail
		}
		return "Slot is already booked"
	}

	var remote *apiclient.RemoteError
	if errors.As(err, &remote) {
		return remote.Detail
	}

	switch {
	case errors.Is(err, ErrUserRequired):
		return "Please select a user to book the slot"
	case errors.Is(err, ErrNotBooked):
		return "Slot is not booked"
	case errors.Is(err, ErrInFlight):
		return "This slot is already being updated, please wait"
	case errors.Is(err, ErrUnknownSlot):
		return "Slot not found"
	}
	return err.Error()
}
