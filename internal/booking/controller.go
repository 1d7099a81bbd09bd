package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"schedulink/internal/apiclient"
	"schedulink/internal/events"
	"schedulink/internal/metrics"
	"schedulink/internal/models"
)

// API is the part of the REST client the controller needs.
type API interface {
	ListSlots(ctx context.Context, f models.SlotFilter) ([]models.Slot, error)
	BookSlot(ctx context.Context, slotID, userID int64) (*models.Slot, error)
	CancelSlot(ctx context.Context, slotID int64) (*models.Slot, error)
}

// EventPublisher receives lifecycle events.
type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// Journal records every attempt.
type Journal interface {
	AppendJournal(ctx context.Context, e models.JournalEntry) (int64, error)
}

// SlotEvent is the payload of slot.* events.
type SlotEvent struct {
	SlotID int64       `json:"slot_id"`
	UserID int64       `json:"user_id,omitempty"`
	Action Action      `json:"action"`
	Reason string      `json:"reason,omitempty"`
	Slot   models.Slot `json:"slot"`
}

// Options wires optional collaborators.
type Options struct {
	Events  EventPublisher
	Journal Journal
	Logger  *zerolog.Logger
}

// Controller owns the local list of slots and applies book/cancel to it.
// It is safe for concurrent use; at most one mutation per slot runs at a time.
type Controller struct {
	api     API
	fsm     *FSM
	events  EventPublisher
	journal Journal
	logger  *zerolog.Logger

	mu      sync.RWMutex
	slots   map[int64]models.Slot
	pending map[int64]Action
	filter  models.SlotFilter
}

func NewController(api API, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "booking").Logger()
	return &Controller{
		api:     api,
		fsm:     NewFSM(),
		events:  opts.Events,
		journal: opts.Journal,
		logger:  &l,
		slots:   make(map[int64]models.Slot),
		pending: make(map[int64]Action),
	}
}

// Refresh replaces the local list with the server's. Slots with a mutation in
// flight keep their local value so a later rollback restores the right thing.
func (c *Controller) Refresh(ctx context.Context, f models.SlotFilter) ([]models.Slot, error) {
	list, err := c.api.ListSlots(ctx, f)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	next := make(map[int64]models.Slot, len(list))
	for _, s := range list {
		if _, busy := c.pending[s.ID]; busy {
			if local, ok := c.slots[s.ID]; ok {
				next[s.ID] = local
				continue
			}
		}
		next[s.ID] = s.Clone()
	}
	c.slots = next
	c.filter = f
	c.mu.Unlock()

	return c.Slots(), nil
}

// Filter returns the filter of the last Refresh.
func (c *Controller) Filter() models.SlotFilter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Slots returns a snapshot ordered by date, start time and id.
func (c *Controller) Slots() []models.Slot {
	c.mu.RLock()
	out := make([]models.Slot, 0, len(c.slots))
	for _, s := range c.slots {
		out = append(out, s.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Slot returns one slot from the local list.
func (c *Controller) Slot(id int64) (models.Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.slots[id]
	return s.Clone(), ok
}

// Put inserts or replaces a slot, e.g. after it was created.
func (c *Controller) Put(s models.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[s.ID] = s.Clone()
}

// Remove drops a slot from the local list.
func (c *Controller) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.slots, id)
}

// Pending reports whether a mutation for id is in flight.
func (c *Controller) Pending(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.pending[id]
	return ok
}

// Book books slotID for userID. The local slot shows as booked while the
// request runs; if the server refuses, the previous value is restored.
func (c *Controller) Book(ctx context.Context, slotID, userID int64) Result {
	if userID <= 0 {
		return c.finish(ctx, ActionBook, slotID, userID, Fail(ErrUserRequired))
	}
	return c.mutate(ctx, ActionBook, slotID, userID)
}

// Cancel clears the booking on slotID. Cancelling a slot that is available
// locally fails with ErrNotBooked without calling the server.
func (c *Controller) Cancel(ctx context.Context, slotID int64) Result {
	return c.mutate(ctx, ActionCancel, slotID, 0)
}

func (c *Controller) mutate(ctx context.Context, action Action, slotID, userID int64) Result {
	prev, err := c.begin(action, slotID)
	if err != nil {
		return c.finish(ctx, action, slotID, userID, Fail(err))
	}

	target := Target(action)
	optimistic := c.fsm.CanTransition(prev.State(), target)
	if !optimistic && action == ActionCancel {
		c.settle(slotID, nil)
		return c.finish(ctx, action, slotID, userID, Fail(ErrNotBooked))
	}

	if optimistic {
		next := prev.Clone()
		if action == ActionBook {
			next.MarkBooked(userID)
		} else {
			next.MarkAvailable()
		}
		c.Put(next)
		c.publish(events.SlotPending, SlotEvent{SlotID: slotID, UserID: userID, Action: action, Slot: next})
	}

	var updated *models.Slot
	if action == ActionBook {
		updated, err = c.api.BookSlot(ctx, slotID, userID)
	} else {
		updated, err = c.api.CancelSlot(ctx, slotID)
	}

	if err != nil {
		if optimistic {
			c.rollback(prev)
			metrics.IncRollback(string(action))
			c.publish(events.SlotRolledBack, SlotEvent{SlotID: slotID, UserID: userID, Action: action, Reason: Reason(err), Slot: prev})
		} else {
			c.settle(slotID, nil)
		}
		return c.finish(ctx, action, slotID, userID, Fail(classify(action, slotID, err)))
	}

	c.settle(slotID, updated)
	evType := events.SlotBooked
	if action == ActionCancel {
		evType = events.SlotCancelled
	}
	c.publish(evType, SlotEvent{SlotID: slotID, UserID: userID, Action: action, Slot: *updated})
	return c.finish(ctx, action, slotID, userID, Ok(*updated))
}

func (c *Controller) begin(action Action, slotID int64) (models.Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[slotID]
	if !ok {
		return models.Slot{}, ErrUnknownSlot
	}
	if _, busy := c.pending[slotID]; busy {
		return models.Slot{}, ErrInFlight
	}
	c.pending[slotID] = action
	return s.Clone(), nil
}

// settle releases the in-flight guard and, when s is non-nil, stores s under
// the same lock.
func (c *Controller) settle(slotID int64, s *models.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s != nil {
		c.slots[s.ID] = s.Clone()
	}
	delete(c.pending, slotID)
}

// rollback restores prev and releases the in-flight guard. A slot that a
// Refresh dropped in the meantime stays dropped.
func (c *Controller) rollback(prev models.Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slots[prev.ID]; ok {
		c.slots[prev.ID] = prev.Clone()
	}
	delete(c.pending, prev.ID)
}

func classify(action Action, slotID int64, err error) error {
	switch {
	case action == ActionBook && apiclient.IsConflict(err):
		ab := &AlreadyBookedError{SlotID: slotID, Err: err}
		var re *apiclient.RemoteError
		if errors.As(err, &re) {
			ab.Detail = re.Detail
		}
		return ab
	case action == ActionCancel && apiclient.IsNotBooked(err):
		return fmt.Errorf("%w: %w", ErrNotBooked, err)
	}
	return err
}

func (c *Controller) finish(ctx context.Context, action Action, slotID, userID int64, r Result) Result {
	outcome := "ok"
	if !r.OK() {
		outcome = "error"
	}
	metrics.IncSlotTransition(string(action), outcome)

	level := zerolog.InfoLevel
	if !r.OK() {
		level = zerolog.WarnLevel
	}
	c.logger.WithLevel(level).
		Str("action", string(action)).
		Int64("slot_id", slotID).
		Int64("user_id", userID).
		Str("outcome", outcome).
		Str("reason", r.Reason()).
		Msg("slot transition")

	if c.journal != nil {
		_, err := c.journal.AppendJournal(ctx, models.JournalEntry{
			SlotID:  slotID,
			UserID:  userID,
			Action:  string(action),
			Outcome: outcome,
			Reason:  r.Reason(),
		})
		if err != nil {
			c.logger.Warn().Err(err).Int64("slot_id", slotID).Msg("failed to append booking journal")
		}
	}
	return r
}

func (c *Controller) publish(eventType string, ev SlotEvent) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishJSON(eventType, ev); err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("event handler failed")
	}
}
