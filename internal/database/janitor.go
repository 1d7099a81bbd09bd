package database

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// JanitorConfig controls journal and reminder retention.
type JanitorConfig struct {
	Enabled       bool
	Interval      time.Duration
	RetentionDays int
}

// Janitor periodically prunes the booking journal and finished reminders.
type Janitor struct {
	db     *DB
	config JanitorConfig
	logger *zerolog.Logger
}

func NewJanitor(db *DB, cfg JanitorConfig, logger *zerolog.Logger) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &Janitor{db: db, config: cfg, logger: logger}
}

// Start blocks until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	if !j.config.Enabled || j.config.RetentionDays <= 0 {
		j.logger.Info().Msg("Journal janitor is disabled")
		return
	}

	j.logger.Info().Dur("interval", j.config.Interval).Int("retention_days", j.config.RetentionDays).Msg("Journal janitor started")

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce prunes rows past retention and returns how many were removed.
func (j *Janitor) RunOnce(ctx context.Context) int64 {
	retention := time.Duration(j.config.RetentionDays) * 24 * time.Hour

	n, err := j.db.PruneJournal(ctx, retention)
	if err != nil {
		j.logger.Error().Err(err).Msg("Journal prune failed")
		n = 0
	} else if n > 0 {
		j.logger.Info().Int64("deleted", n).Msg("Pruned booking journal")
	}

	r, err := j.db.PruneReminders(ctx, retention)
	if err != nil {
		j.logger.Error().Err(err).Msg("Reminder prune failed")
		return n
	}
	if r > 0 {
		j.logger.Info().Int64("deleted", r).Msg("Pruned finished reminders")
	}
	return n + r
}
