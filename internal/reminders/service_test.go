package reminders

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedulink/internal/apiclient"
	"schedulink/internal/apitest"
	"schedulink/internal/database"
	"schedulink/internal/models"
)

type sentReminder struct {
	chatID int64
	slot   models.Slot
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentReminder
	errs []error
}

func (f *fakeNotifier) SendReminder(_ context.Context, chatID int64, slot models.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.sent = append(f.sent, sentReminder{chatID: chatID, slot: slot})
	return nil
}

type fixture struct {
	srv   *apitest.Server
	db    *database.DB
	svc   *Service
	clock time.Time
	slot  models.Slot
	user  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	srv := apitest.New()
	t.Cleanup(srv.Close)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "r.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	api := apiclient.New(apiclient.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	f := &fixture{srv: srv, db: db, clock: time.Date(2030, 1, 1, 7, 0, 0, 0, time.UTC)}
	f.svc = NewService(Config{Enabled: true, LeadTime: time.Hour, MaxAttempts: 2, Location: time.UTC, SendRate: 1000}, db, api, &logger)
	f.svc.now = func() time.Time { return f.clock }

	f.user = srv.SeedUser("Ann", "a@b.co", "123")
	slot := models.Slot{Title: "Checkup", Date: "2030-01-01", StartTime: "09:00", EndTime: "09:30"}
	slot.MarkBooked(f.user.ID)
	f.slot = srv.SeedSlot(slot)
	return f
}

func TestSchedule_SendsOnceWhenDue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{}

	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))

	// 07:00, reminder is due at 08:00
	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))

	f.clock = f.clock.Add(time.Hour)
	assert.Equal(t, 1, f.svc.RunOnce(ctx, n))
	require.Len(t, n.sent, 1)
	assert.Equal(t, int64(77), n.sent[0].chatID)
	assert.Equal(t, "Checkup", n.sent[0].slot.Title)

	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	assert.Len(t, n.sent, 1)
}

func TestSchedule_SkipsStartedSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))

	due, err := f.db.DueReminders(ctx, f.clock.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestSchedule_InsideLeadTimeIsImmediate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{}

	f.clock = time.Date(2030, 1, 1, 8, 45, 0, 0, time.UTC)
	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	assert.Equal(t, 1, f.svc.RunOnce(ctx, n))
}

func TestSchedule_BadSlotTime(t *testing.T) {
	f := newFixture(t)
	bad := f.slot
	bad.StartTime = "soon"
	assert.Error(t, f.svc.Schedule(context.Background(), 77, bad))
}

func TestCancel_StopsReminder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{}

	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	require.NoError(t, f.svc.Cancel(ctx, f.slot.ID))

	f.clock = f.clock.Add(90 * time.Minute)
	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	assert.Empty(t, n.sent)
}

func TestRunOnce_DropsChangedBookings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
	}{
		{"cancelled elsewhere", func(f *fixture) {
			s := f.slot
			s.MarkAvailable()
			f.srv.PutSlot(s)
		}},
		{"deleted", func(f *fixture) {
			f.srv.Fail("GET /slots/{id}", apitest.Failure{Status: 404, Detail: "Slot not found"})
		}},
		{"booked by someone else", func(f *fixture) {
			s := f.slot
			s.MarkBooked(f.user.ID + 100)
			f.srv.PutSlot(s)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			n := &fakeNotifier{}

			require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
			tt.mutate(f)

			f.clock = f.clock.Add(90 * time.Minute)
			assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
			assert.Empty(t, n.sent)

			due, err := f.db.DueReminders(ctx, f.clock, 10)
			require.NoError(t, err)
			assert.Empty(t, due, "reminder should be closed")
		})
	}
}

func TestRunOnce_ServerDownKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{}

	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	f.srv.Fail("GET /slots/{id}", apitest.Failure{Status: 503})

	f.clock = f.clock.Add(90 * time.Minute)
	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	assert.Equal(t, 1, f.svc.RunOnce(ctx, n))
}

func TestRunOnce_RetriesThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{errs: []error{errors.New("timeout"), errors.New("timeout")}}

	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	f.clock = f.clock.Add(90 * time.Minute)

	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	due, err := f.db.DueReminders(ctx, f.clock, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "timeout", due[0].LastError)

	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	due, err = f.db.DueReminders(ctx, f.clock, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestRunOnce_UndeliverableFailsAtOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{errs: []error{ErrUndeliverable}}

	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	f.clock = f.clock.Add(90 * time.Minute)

	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))
	due, err := f.db.DueReminders(ctx, f.clock, 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestDisabled(t *testing.T) {
	f := newFixture(t)
	f.svc.config.Enabled = false
	ctx := context.Background()

	assert.False(t, f.svc.Enabled())
	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))
	require.NoError(t, f.svc.Cancel(ctx, f.slot.ID))

	due, err := f.db.DueReminders(ctx, f.clock.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	done := make(chan struct{})
	go func() {
		f.svc.Start(ctx, &fakeNotifier{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return when disabled")
	}
}

func TestSchedule_SlotZoneDiffersFromClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := &fakeNotifier{}

	// 09:00 in UTC+9 starts at 00:00 UTC; the reminder is due at 23:00 UTC
	f.svc.config.Location = time.FixedZone("UTC+9", 9*60*60)
	f.clock = time.Date(2029, 12, 31, 21, 0, 0, 0, time.UTC)
	require.NoError(t, f.svc.Schedule(ctx, 77, f.slot))

	f.clock = time.Date(2029, 12, 31, 22, 59, 0, 0, time.UTC)
	assert.Equal(t, 0, f.svc.RunOnce(ctx, n))

	f.clock = time.Date(2029, 12, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, f.svc.RunOnce(ctx, n))
	require.Len(t, n.sent, 1)
}
