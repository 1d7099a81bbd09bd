package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"schedulink/internal/apitest"
	"schedulink/internal/models"
	"schedulink/internal/reminders"
)

type mockReminders struct {
	mock.Mock
}

func (m *mockReminders) Schedule(ctx context.Context, chatID int64, slot models.Slot) error {
	args := m.Called(ctx, chatID, slot)
	return args.Error(0)
}

func (m *mockReminders) Cancel(ctx context.Context, slotID int64) error {
	args := m.Called(ctx, slotID)
	return args.Error(0)
}

func TestReminders_ScheduledOnBookAndDroppedOnCancel(t *testing.T) {
	f := setup(t)
	rem := &mockReminders{}
	f.bot.reminders = rem

	user := f.srv.SeedUser("Ann", "a@b.co", "123")
	f.srv.SeedSlot(models.Slot{Title: "Checkup", Date: "2030-01-01", StartTime: "09:00", EndTime: "09:15"})
	f.say(5, "/slots")

	rem.On("Schedule", mock.Anything, int64(5), mock.MatchedBy(func(s models.Slot) bool {
		return s.ID == 1 && s.IsBooked && s.BookedBy() == user.ID
	})).Return(nil).Once()
	f.tap(5, 0, "as:1:1")
	assert.Contains(t, f.tg.texts(), "Slot booked successfully!")

	rem.On("Cancel", mock.Anything, int64(1)).Return(errors.New("db locked")).Once()
	f.tap(5, 0, "cancel:1")
	assert.Contains(t, f.tg.texts(), "Booking cancelled successfully!")

	rem.AssertExpectations(t)
}

func TestReminders_NotScheduledOnFailure(t *testing.T) {
	f := setup(t)
	rem := &mockReminders{}
	f.bot.reminders = rem

	f.srv.SeedUser("Ann", "a@b.co", "123")
	f.srv.SeedSlot(models.Slot{Title: "Checkup", Date: "2030-01-01", StartTime: "09:00", EndTime: "09:15"})
	f.say(5, "/slots")

	f.srv.Fail("PATCH /slots/{id}/book", apitest.Failure{Status: 500})
	f.tap(5, 0, "as:1:1")

	rem.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendReminder(t *testing.T) {
	f := setup(t)
	slot := models.Slot{ID: 3, Title: "Checkup", Date: "2030-01-01", StartTime: "09:00", EndTime: "09:15"}

	require.NoError(t, f.bot.SendReminder(f.ctx, 8, slot))
	msg, ok := f.tg.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(8), msg.ChatID)
	assert.Equal(t, "⏰ Reminder: Checkup starts at 09:00 on 2030-01-01 (until 09:15).", msg.Text)

	f.tg.err = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	err := f.bot.SendReminder(f.ctx, 8, slot)
	assert.ErrorIs(t, err, reminders.ErrUndeliverable)

	f.tg.err = errors.New("connection reset")
	err = f.bot.SendReminder(f.ctx, 8, slot)
	require.Error(t, err)
	assert.NotErrorIs(t, err, reminders.ErrUndeliverable)
}
