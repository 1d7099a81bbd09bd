package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialogState_Helpers(t *testing.T) {
	state := &DialogState{
		TempData: map[string]interface{}{
			"int":    int64(123),
			"float":  123.0,
			"string": "hello",
			"time":   "2025-01-01T10:00:00Z",
		},
	}

	t.Run("GetInt64", func(t *testing.T) {
		assert.Equal(t, int64(123), state.GetInt64("int"))
		assert.Equal(t, int64(123), state.GetInt64("float"))
		assert.Equal(t, int64(0), state.GetInt64("string"))
		assert.Equal(t, int64(0), state.GetInt64("missing"))
	})

	t.Run("GetString", func(t *testing.T) {
		assert.Equal(t, "hello", state.GetString("string"))
		assert.Equal(t, "", state.GetString("int"))
		assert.Equal(t, "", state.GetString("missing"))
	})

	t.Run("GetTime", func(t *testing.T) {
		tm := state.GetTime("time")
		assert.False(t, tm.IsZero())
		assert.Equal(t, 2025, tm.Year())

		assert.True(t, state.GetTime("missing").IsZero())
	})

	t.Run("Set initializes map", func(t *testing.T) {
		s := &DialogState{}
		s.Set("k", "v")
		assert.Equal(t, "v", s.GetString("k"))
	})

	t.Run("Clone does not share data", func(t *testing.T) {
		c := state.Clone()
		c.Set("string", "changed")
		assert.Equal(t, "hello", state.GetString("string"))
		assert.Equal(t, "changed", c.GetString("string"))
	})
}

func TestSlot_StateAndConsistency(t *testing.T) {
	s := Slot{ID: 1, Title: "Checkup"}
	assert.Equal(t, SlotAvailable, s.State())
	assert.True(t, s.Consistent())

	s.MarkBooked(7)
	assert.Equal(t, SlotBooked, s.State())
	assert.Equal(t, int64(7), s.BookedBy())
	assert.True(t, s.Consistent())

	s.MarkAvailable()
	assert.Equal(t, SlotAvailable, s.State())
	assert.Nil(t, s.BookedByUserID)
	assert.True(t, s.Consistent())

	broken := Slot{IsBooked: true}
	assert.False(t, broken.Consistent())
}

func TestSlot_CloneDoesNotShare(t *testing.T) {
	s := Slot{ID: 1, Description: StringPtr("x"), UserID: Int64Ptr(2)}
	s.MarkBooked(3)

	c := s.Clone()
	*c.BookedByUserID = 9
	*c.Description = "y"

	assert.Equal(t, int64(3), s.BookedBy())
	assert.Equal(t, "x", s.DescriptionText())
}

func TestSlot_Status(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	tests := []struct {
		date     string
		expected SlotStatus
	}{
		{"2026-03-09", StatusPast},
		{"2026-03-10", StatusToday},
		{"2026-03-11", StatusUpcoming},
		{"bad", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			s := Slot{Date: tt.date}
			assert.Equal(t, tt.expected, s.Status(now))
		})
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:15")
	require.NoError(t, err)
	assert.Equal(t, 555, m)
	assert.Equal(t, "09:15", FormatClock(m))

	_, err = ParseClock("9am")
	assert.Error(t, err)
}

func TestPointerHelpers(t *testing.T) {
	assert.Nil(t, Int64Ptr(0))
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, int64(4), *Int64Ptr(4))
	assert.True(t, *BoolPtr(true))
	assert.True(t, SlotUpdate{}.Empty())
	assert.False(t, SlotUpdate{Title: StringPtr("a")}.Empty())
}

func TestSlot_StartsAt(t *testing.T) {
	s := Slot{Date: "2026-03-10", StartTime: "09:15"}
	at, err := s.StartsAt(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 15, 0, 0, time.UTC), at)

	s.StartTime = "late"
	_, err = s.StartsAt(time.UTC)
	assert.Error(t, err)
}
