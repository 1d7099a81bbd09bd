package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedulink/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "client.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPreferences_DefaultsAndUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	prefs, found, err := db.GetPreferences(ctx, "chat:1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, models.DefaultPreferences("chat:1"), prefs)

	prefs.Theme = models.ThemeDark
	prefs.Role = models.RoleMaster
	prefs.Visited = true
	require.NoError(t, db.SavePreferences(ctx, prefs))

	got, found, err := db.GetPreferences(ctx, "chat:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.ThemeDark, got.Theme)
	assert.Equal(t, models.RoleMaster, got.Role)
	assert.True(t, got.Visited)
	assert.False(t, got.UpdatedAt.IsZero())

	got.Theme = models.ThemeLight
	require.NoError(t, db.SavePreferences(ctx, got))
	again, _, err := db.GetPreferences(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, again.Theme)
	assert.Equal(t, models.RoleMaster, again.Role)

	require.NoError(t, db.DeletePreferences(ctx, "chat:1"))
	_, found, err = db.GetPreferences(ctx, "chat:1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPreferences_UnknownValuesFallBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO preferences (profile, theme, role, visited) VALUES ('p', 'neon', 'admin', 1)`)
	require.NoError(t, err)

	got, found, err := db.GetPreferences(ctx, "p")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.ThemeLight, got.Theme)
	assert.Equal(t, models.RoleGuest, got.Role)
	assert.True(t, got.Visited)
}

func TestJournal(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := models.JournalEntry{SlotID: 1, UserID: 2, Action: "book", Outcome: "ok", CreatedAt: time.Now().Add(-72 * time.Hour)}
	_, err := db.AppendJournal(ctx, old)
	require.NoError(t, err)

	id, err := db.AppendJournal(ctx, models.JournalEntry{SlotID: 1, Action: "cancel", Outcome: "error", Reason: "Slot is not booked"})
	require.NoError(t, err)
	assert.Positive(t, id)

	entries, err := db.RecentJournal(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cancel", entries[0].Action)
	assert.Equal(t, "Slot is not booked", entries[0].Reason)
	assert.Equal(t, "", entries[1].Reason)

	n, err := db.PruneJournal(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err = db.RecentJournal(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestJanitor_RunOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	_, err := db.AppendJournal(ctx, models.JournalEntry{SlotID: 1, Action: "book", Outcome: "ok", CreatedAt: time.Now().AddDate(0, 0, -40)})
	require.NoError(t, err)

	j := NewJanitor(db, JanitorConfig{Enabled: true, RetentionDays: 30}, &logger)
	assert.Equal(t, int64(1), j.RunOnce(ctx))
	assert.Equal(t, int64(0), j.RunOnce(ctx))
}

func TestJanitor_DisabledReturnsImmediately(t *testing.T) {
	logger := zerolog.New(io.Discard)
	j := NewJanitor(nil, JanitorConfig{}, &logger)

	done := make(chan struct{})
	go func() {
		j.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not return")
	}
}

func TestPreferences_QueryError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := Wrap(sqlDB, nil)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT profile, theme, role, visited, created_at, updated_at`)).
		WithArgs("chat:9").
		WillReturnError(boom)

	_, _, err = db.GetPreferences(context.Background(), "chat:9")
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO preferences`)).
		WithArgs("chat:9", "dark", "guest", false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(boom)

	prefs := models.DefaultPreferences("chat:9")
	prefs.Theme = models.ThemeDark
	assert.ErrorIs(t, db.SavePreferences(context.Background(), prefs), boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReminders_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.SaveReminder(ctx, models.Reminder{SlotID: 1, ChatID: 10, UserID: 3, RemindAt: now.Add(-time.Minute)}))
	require.NoError(t, db.SaveReminder(ctx, models.Reminder{SlotID: 2, ChatID: 10, UserID: 3, RemindAt: now.Add(time.Hour)}))

	due, err := db.DueReminders(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(1), due[0].SlotID)
	assert.Equal(t, int64(10), due[0].ChatID)
	assert.Equal(t, models.ReminderPending, due[0].Status)
	assert.Nil(t, due[0].SentAt)

	sent := due[0]
	sentAt := now
	sent.Status = models.ReminderSent
	sent.Attempts = 1
	sent.SentAt = &sentAt
	require.NoError(t, db.FinishReminder(ctx, sent))

	due, err = db.DueReminders(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(2), due[0].SlotID)

	n, err := db.CancelReminders(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	due, err = db.DueReminders(ctx, now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// rebooking reschedules the cancelled row
	require.NoError(t, db.SaveReminder(ctx, models.Reminder{SlotID: 2, ChatID: 10, UserID: 4, RemindAt: now.Add(-time.Second)}))
	due, err = db.DueReminders(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, int64(4), due[0].UserID)
	assert.Zero(t, due[0].Attempts)

	pruned, err := db.PruneReminders(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}

func TestDueReminders_AcrossTimezones(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tokyo := time.FixedZone("UTC+9", 9*60*60)
	honolulu := time.FixedZone("UTC-10", -10*60*60)

	// 18:00 +09:00 is 09:00 UTC
	at := time.Date(2030, 1, 1, 18, 0, 0, 0, tokyo)
	require.NoError(t, db.SaveReminder(ctx, models.Reminder{SlotID: 1, ChatID: 10, UserID: 3, RemindAt: at}))

	tests := []struct {
		name string
		now  time.Time
		due  int
	}{
		{"an hour later in utc", time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC), 1},
		{"a minute early in utc", time.Date(2030, 1, 1, 8, 59, 0, 0, time.UTC), 0},
		{"same instant in honolulu", at.In(honolulu), 1},
		{"a minute early in honolulu", at.Add(-time.Minute).In(honolulu), 0},
		{"an hour later in tokyo", at.Add(time.Hour), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, err := db.DueReminders(ctx, tt.now, 10)
			require.NoError(t, err)
			require.Len(t, due, tt.due)
			if tt.due > 0 {
				assert.True(t, due[0].RemindAt.Equal(at))
			}
		})
	}
}
