package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Failure messages shown when the server gives no detail.
const (
	msgCreateUser   = "Failed to create user"
	msgListUsers    = "Failed to fetch users"
	msgGetUser      = "Failed to fetch user"
	msgUserSlots    = "Failed to fetch user slots"
	msgUserBookings = "Failed to fetch user bookings"
	msgCreateSlot   = "Failed to create slot"
	msgListSlots    = "Failed to fetch slots"
	msgGetSlot      = "Failed to fetch slot"
	msgBookSlot     = "Failed to book slot"
	msgCancelSlot   = "Failed to cancel booking"
	msgUpdateSlot   = "Failed to update slot"
	msgDeleteSlot   = "Failed to delete slot"
	msgUnavailable  = "Backend service unavailable"
	detailNotBooked = "Slot is not booked"
	detailBooked    = "Slot is already booked"
)

// RemoteError is any failure talking to the scheduling API. Status is 0 when
// no response was received.
type RemoteError struct {
	Op     string
	Status int
	Detail string
	Err    error
}

func (e *RemoteError) Error() string {
	return e.Detail
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Transport reports whether the request never got a response.
func (e *RemoteError) Transport() bool {
	return e.Status == 0
}

// IsConflict reports whether the server refused a booking because the slot
// is already taken.
func IsConflict(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	if re.Status == http.StatusConflict {
		return true
	}
	return re.Status == http.StatusBadRequest && strings.EqualFold(re.Detail, detailBooked)
}

// IsNotBooked reports whether the server refused a cancel because the slot
// was not booked.
func IsNotBooked(err error) bool {
	var re *RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Status == http.StatusBadRequest && strings.EqualFold(re.Detail, detailNotBooked)
}

// IsNotFound reports a 404 from the server.
func IsNotFound(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Status == http.StatusNotFound
}

// detailFrom extracts the server's detail field. FastAPI-style validation
// errors carry a list of objects with a msg field.
func detailFrom(body []byte) string {
	var wrap struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &wrap); err != nil || len(wrap.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(wrap.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(wrap.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

func remoteError(op, fallback string, status int, body []byte, cause error) *RemoteError {
	detail := detailFrom(body)
	if detail == "" {
		detail = fallback
	}
	if cause == nil {
		cause = fmt.Errorf("http %d", status)
	}
	return &RemoteError{Op: op, Status: status, Detail: detail, Err: cause}
}
