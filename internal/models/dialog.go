package models

import (
	"time"

	"github.com/spf13/cast"
)

// DialogState is the per-chat state of a multi-step form.
type DialogState struct {
	ChatID    int64
	Step      string
	TempData  map[string]interface{}
	UpdatedAt time.Time
}

// NewDialogState returns an empty state at step.
func NewDialogState(chatID int64, step string) *DialogState {
	return &DialogState{
		ChatID:    chatID,
		Step:      step,
		TempData:  make(map[string]interface{}),
		UpdatedAt: time.Now(),
	}
}

// Set stores a value collected by the dialog.
func (s *DialogState) Set(key string, value interface{}) {
	if s.TempData == nil {
		s.TempData = make(map[string]interface{})
	}
	s.TempData[key] = value
	s.UpdatedAt = time.Now()
}

// Clone returns a copy that shares no map with s.
func (s *DialogState) Clone() *DialogState {
	c := *s
	c.TempData = make(map[string]interface{}, len(s.TempData))
	for k, v := range s.TempData {
		c.TempData[k] = v
	}
	return &c
}

// GetInt64 returns the value for key as int64, or 0.
func (s *DialogState) GetInt64(key string) int64 {
	val, ok := s.TempData[key]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int64, int, float64:
		return cast.ToInt64(v)
	default:
		return 0
	}
}

// GetString returns the value for key if it is a string.
func (s *DialogState) GetString(key string) string {
	if v, ok := s.TempData[key].(string); ok {
		return v
	}
	return ""
}

// GetTime parses an RFC3339 value for key.
func (s *DialogState) GetTime(key string) time.Time {
	v, ok := s.TempData[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
