package bot

import (
	"sync"
	"time"

	"schedulink/internal/models"
)

const (
	stepNone = ""

	stepUserName  = "user_name"
	stepUserEmail = "user_email"
	stepUserPhone = "user_phone"

	stepSlotTitle       = "slot_title"
	stepSlotDescription = "slot_description"
	stepSlotDate        = "slot_date"
	stepSlotStart       = "slot_start"
	stepSlotEnd         = "slot_end"
	stepSlotOwner       = "slot_owner"
)

// stateStore keeps the in-progress dialog of each chat. A dialog idle for
// longer than ttl is dropped. Callers get copies; every change goes through
// the store under its lock.
type stateStore struct {
	mu  sync.Mutex
	m   map[int64]*models.DialogState
	ttl time.Duration
	now func() time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{m: make(map[int64]*models.DialogState), ttl: ttl, now: time.Now}
}

func (s *stateStore) lookup(chatID int64) *models.DialogState {
	st := s.m[chatID]
	if st != nil && s.ttl > 0 && s.now().Sub(st.UpdatedAt) > s.ttl {
		delete(s.m, chatID)
		return nil
	}
	return st
}

func (s *stateStore) get(chatID int64) *models.DialogState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.lookup(chatID); st != nil {
		return st.Clone()
	}
	return models.NewDialogState(chatID, stepNone)
}

func (s *stateStore) start(chatID int64, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := models.NewDialogState(chatID, step)
	st.UpdatedAt = s.now()
	s.m[chatID] = st
}

// record stores value under key while the dialog is still at step, then moves
// it to next. It returns the updated dialog, or false if the dialog is gone or
// already past step.
func (s *stateStore) record(chatID int64, step, key string, value interface{}, next string) (*models.DialogState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.lookup(chatID)
	if st == nil || st.Step != step {
		return nil, false
	}
	st.Set(key, value)
	st.Step = next
	st.UpdatedAt = s.now()
	return st.Clone(), true
}

func (s *stateStore) advance(chatID int64, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.lookup(chatID); st != nil {
		st.Step = step
		st.UpdatedAt = s.now()
	}
}

func (s *stateStore) reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, chatID)
}
