// Package reminders tells a chat that a slot it booked is about to start.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"schedulink/internal/apiclient"
	"schedulink/internal/metrics"
	"schedulink/internal/models"
)

// ErrUndeliverable marks a send failure that retrying will not fix, such as
// a chat that blocked the bot.
var ErrUndeliverable = errors.New("reminder undeliverable")

// Store persists reminders.
type Store interface {
	SaveReminder(ctx context.Context, r models.Reminder) error
	CancelReminders(ctx context.Context, slotID int64) (int64, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	FinishReminder(ctx context.Context, r models.Reminder) error
}

// SlotSource fetches the current server copy of a slot.
type SlotSource interface {
	GetSlot(ctx context.Context, id int64) (*models.Slot, error)
}

// Notifier delivers the reminder text.
type Notifier interface {
	SendReminder(ctx context.Context, chatID int64, slot models.Slot) error
}

// Config holds reminder timing.
type Config struct {
	Enabled       bool
	LeadTime      time.Duration
	CheckInterval time.Duration
	MaxAttempts   int
	BatchSize     int
	Location      *time.Location
	// SendRate caps outgoing messages per second.
	SendRate float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		LeadTime:      time.Hour,
		CheckInterval: time.Minute,
		MaxAttempts:   3,
		BatchSize:     50,
		Location:      time.Local,
		SendRate:      20,
	}
}

// Service schedules reminders when a chat books and sends them when due.
type Service struct {
	config  Config
	store   Store
	slots   SlotSource
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(cfg Config, store Store, slots SlotSource, logger *zerolog.Logger) *Service {
	def := DefaultConfig()
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = def.LeadTime
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = def.SendRate
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		config:  cfg,
		store:   store,
		slots:   slots,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), int(cfg.SendRate)+1),
		logger:  logger.With().Str("component", "reminders").Logger(),
		now:     time.Now,
	}
}

// Enabled reports whether reminders are switched on.
func (s *Service) Enabled() bool {
	return s.config.Enabled
}

// Schedule queues a reminder for chatID about a slot it just booked. Slots
// that already started are ignored; slots starting within the lead time are
// reminded on the next scan.
func (s *Service) Schedule(ctx context.Context, chatID int64, slot models.Slot) error {
	if !s.config.Enabled {
		return nil
	}
	start, err := slot.StartsAt(s.config.Location)
	if err != nil {
		return fmt.Errorf("slot %d start: %w", slot.ID, err)
	}
	now := s.now()
	if !start.After(now) {
		return nil
	}
	at := start.Add(-s.config.LeadTime)
	if at.Before(now) {
		at = now
	}

	err = s.store.SaveReminder(ctx, models.Reminder{
		SlotID:   slot.ID,
		ChatID:   chatID,
		UserID:   slot.BookedBy(),
		RemindAt: at,
	})
	if err != nil {
		return fmt.Errorf("save reminder: %w", err)
	}
	s.logger.Debug().Int64("slot_id", slot.ID).Int64("chat_id", chatID).Time("remind_at", at).Msg("reminder scheduled")
	return nil
}

// Cancel drops pending reminders for slotID.
func (s *Service) Cancel(ctx context.Context, slotID int64) error {
	if !s.config.Enabled {
		return nil
	}
	n, err := s.store.CancelReminders(ctx, slotID)
	if err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		s.logger.Debug().Int64("slot_id", slotID).Int64("cancelled", n).Msg("reminders cancelled")
	}
	return nil
}

// Start scans for due reminders until ctx is done.
func (s *Service) Start(ctx context.Context, n Notifier) {
	if !s.config.Enabled {
		s.logger.Info().Msg("reminders are disabled")
		return
	}
	s.logger.Info().Dur("lead", s.config.LeadTime).Dur("interval", s.config.CheckInterval).Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.RunOnce(ctx, n)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx, n)
		}
	}
}

// RunOnce sends every due reminder and returns how many were delivered.
func (s *Service) RunOnce(ctx context.Context, n Notifier) int {
	due, err := s.store.DueReminders(ctx, s.now(), s.config.BatchSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch due reminders")
		return 0
	}
	metrics.SetRemindersPending(len(due))

	sent := 0
	for _, r := range due {
		if ctx.Err() != nil {
			return sent
		}
		if s.deliver(ctx, n, r) {
			sent++
		}
	}
	return sent
}

func (s *Service) deliver(ctx context.Context, n Notifier, r models.Reminder) bool {
	log := s.logger.With().Int64("reminder_id", r.ID).Int64("slot_id", r.SlotID).Int64("chat_id", r.ChatID).Logger()

	slot, err := s.slots.GetSlot(ctx, r.SlotID)
	switch {
	case apiclient.IsNotFound(err):
		s.finish(ctx, log, r, models.ReminderCancelled, "slot deleted")
		return false
	case err != nil:
		// Server unreachable; the reminder stays pending for the next scan.
		log.Warn().Err(err).Msg("could not check slot before reminding")
		return false
	case !slot.IsBooked || slot.BookedBy() != r.UserID:
		s.finish(ctx, log, r, models.ReminderCancelled, "booking changed")
		return false
	}
	if start, err := slot.StartsAt(s.config.Location); err == nil && !start.After(s.now()) {
		s.finish(ctx, log, r, models.ReminderCancelled, "slot already started")
		return false
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return false
	}

	r.Attempts++
	err = n.SendReminder(ctx, r.ChatID, *slot)
	switch {
	case err == nil:
		sentAt := s.now()
		r.SentAt = &sentAt
		s.finish(ctx, log, r, models.ReminderSent, "")
		return true
	case errors.Is(err, ErrUndeliverable) || r.Attempts >= s.config.MaxAttempts:
		s.finish(ctx, log, r, models.ReminderFailed, err.Error())
	default:
		log.Warn().Err(err).Int("attempt", r.Attempts).Msg("reminder send failed, will retry")
		r.LastError = err.Error()
		if err := s.store.FinishReminder(ctx, r); err != nil {
			log.Error().Err(err).Msg("failed to record reminder attempt")
		}
	}
	return false
}

func (s *Service) finish(ctx context.Context, log zerolog.Logger, r models.Reminder, status models.ReminderStatus, reason string) {
	r.Status = status
	r.LastError = reason
	if err := s.store.FinishReminder(ctx, r); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to store reminder outcome")
	}
	metrics.IncReminder(string(status))
	log.Info().Str("status", string(status)).Str("reason", reason).Msg("reminder finished")
}
