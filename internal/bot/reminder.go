package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"schedulink/internal/models"
	"schedulink/internal/reminders"
)

func (b *Bot) scheduleReminder(ctx context.Context, chatID int64, slot models.Slot) {
	if b.reminders == nil {
		return
	}
	if err := b.reminders.Schedule(ctx, chatID, slot); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("slot_id", slot.ID).Msg("reminder not scheduled")
	}
}

func (b *Bot) dropReminders(ctx context.Context, slotID int64) {
	if b.reminders == nil {
		return
	}
	if err := b.reminders.Cancel(ctx, slotID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("slot_id", slotID).Msg("reminder not cancelled")
	}
}

// SendReminder tells chatID that slot starts soon.
func (b *Bot) SendReminder(_ context.Context, chatID int64, slot models.Slot) error {
	_, err := b.tg.Send(tgbotapi.NewMessage(chatID, formatReminderMessage(slot)))
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && (tgErr.Code == http.StatusForbidden || tgErr.Code == http.StatusBadRequest) {
		return fmt.Errorf("%w: %v", reminders.ErrUndeliverable, err)
	}
	return err
}

func formatReminderMessage(s models.Slot) string {
	return fmt.Sprintf("⏰ Reminder: %s starts at %s on %s (until %s).", s.Title, s.StartTime, s.Date, s.EndTime)
}
