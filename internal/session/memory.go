package session

import (
	"context"
	"sync"
	"time"

	"schedulink/internal/models"
)

// MemoryStore keeps preferences in process. Used for ephemeral CLI runs.
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]models.Preferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]models.Preferences)}
}

func (s *MemoryStore) GetPreferences(_ context.Context, profile string) (models.Preferences, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[profile]
	if !ok {
		return models.DefaultPreferences(profile), false, nil
	}
	return p, true, nil
}

func (s *MemoryStore) SavePreferences(_ context.Context, prefs models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if prev, ok := s.prefs[prefs.Profile]; ok {
		prefs.CreatedAt = prev.CreatedAt
	} else {
		prefs.CreatedAt = now
	}
	prefs.UpdatedAt = now
	s.prefs[prefs.Profile] = prefs
	return nil
}
