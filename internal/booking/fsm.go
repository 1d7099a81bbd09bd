// Package booking drives the client-side slot lifecycle: available slots can
// be booked, booked slots can be cancelled, and every change is applied
// optimistically and rolled back if the server refuses it.
package booking

import "schedulink/internal/models"

// Action is a lifecycle operation.
type Action string

const (
	ActionBook   Action = "book"
	ActionCancel Action = "cancel"
)

// FSM holds the allowed slot state transitions.
type FSM struct {
	transitions map[models.SlotState][]models.SlotState
}

// NewFSM creates the two-state slot machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.SlotState][]models.SlotState{
			models.SlotAvailable: {models.SlotBooked},
			models.SlotBooked:    {models.SlotAvailable},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to models.SlotState) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Target is the state an action leads to.
func Target(a Action) models.SlotState {
	if a == ActionBook {
		return models.SlotBooked
	}
	return models.SlotAvailable
}
