package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"schedulink/internal/models"
)

func TestWrite(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	booked := models.Slot{ID: 2, Title: "Consult", Date: "2030-01-02", StartTime: "10:00", EndTime: "10:30", UserID: models.Int64Ptr(1)}
	booked.MarkBooked(7)

	in := Input{
		Now: now,
		Slots: []models.Slot{
			{ID: 1, Title: "Checkup", Description: models.StringPtr("yearly"), Date: "2030-01-01", StartTime: "09:00", EndTime: "09:15"},
			booked,
		},
		Users: []models.User{{ID: 1, Name: "Ann", Email: "a@b.co", Phone: "1"}},
		Journal: []models.JournalEntry{
			{ID: 1, SlotID: 2, UserID: 7, Action: "book", Outcome: "ok", CreatedAt: now},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, in))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Slots", "Users", "Journal"}, f.GetSheetList())

	rows, err := f.GetRows("Slots")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, slotColumns, rows[0])
	assert.Equal(t, "Checkup", rows[1][1])
	assert.Equal(t, "yearly", rows[1][2])
	assert.Equal(t, "Available", rows[1][7])
	assert.Equal(t, "today", rows[1][8])
	assert.Equal(t, "Ann (#1)", rows[2][6])
	assert.Equal(t, "Booked", rows[2][7])
	assert.Equal(t, "upcoming", rows[2][8])
	assert.Equal(t, "#7", rows[2][9])

	users, err := f.GetRows("Users")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@b.co", users[1][2])
}

func TestWrite_NoJournalSheetWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Input{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Slots", "Users"}, f.GetSheetList())
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "slots_2030-01-05.xlsx", Filename(time.Date(2030, 1, 5, 23, 0, 0, 0, time.UTC)))
}

type stubSources struct {
	slots   []models.Slot
	users   []models.User
	journal []models.JournalEntry
	err     map[string]error
}

func (s stubSources) Refresh(context.Context, models.SlotFilter) ([]models.Slot, error) {
	return s.slots, s.err["slots"]
}

func (s stubSources) ListUsers(context.Context) ([]models.User, error) {
	return s.users, s.err["users"]
}

func (s stubSources) RecentJournal(_ context.Context, limit int) ([]models.JournalEntry, error) {
	if limit != JournalLimit {
		return nil, errors.New("unexpected limit")
	}
	return s.journal, s.err["journal"]
}

func TestGather(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	src := stubSources{
		slots:   []models.Slot{{ID: 1, Title: "Checkup"}},
		users:   []models.User{{ID: 1, Name: "Ann"}},
		journal: []models.JournalEntry{{ID: 1, Action: "book"}},
	}

	in, err := Gather(context.Background(), Sources{Slots: src, Users: src, Journal: src}, now)
	require.NoError(t, err)
	assert.Equal(t, now, in.Now)
	assert.Len(t, in.Slots, 1)
	assert.Len(t, in.Users, 1)
	assert.Len(t, in.Journal, 1)

	in, err = Gather(context.Background(), Sources{Slots: src, Users: src}, now)
	require.NoError(t, err)
	assert.Nil(t, in.Journal)
}

func TestGather_Failures(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		failing string
		wantErr string
	}{
		{"slots", "slots", "load slots: boom"},
		{"users", "users", "load users: boom"},
		{"journal is optional", "journal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := stubSources{err: map[string]error{tt.failing: boom}}
			in, err := Gather(context.Background(), Sources{Slots: src, Users: src, Journal: src}, time.Now())
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, in.Journal)
		})
	}
}
