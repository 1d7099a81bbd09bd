package database

import (
	"context"
	"database/sql"
	"time"

	"schedulink/internal/models"
)

// SaveReminder schedules a reminder. Booking the same slot again from the
// same chat reschedules the existing row.
func (db *DB) SaveReminder(ctx context.Context, r models.Reminder) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO reminders (slot_id, chat_id, user_id, remind_at, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'pending', 0, ?, ?)
		ON CONFLICT(slot_id, chat_id) DO UPDATE SET
			user_id = excluded.user_id,
			remind_at = excluded.remind_at,
			status = 'pending',
			attempts = 0,
			last_error = NULL,
			sent_at = NULL,
			updated_at = excluded.updated_at`,
		r.SlotID, r.ChatID, r.UserID, r.RemindAt.UTC(), now, now)
	return err
}

// CancelReminders drops pending reminders for a slot.
func (db *DB) CancelReminders(ctx context.Context, slotID int64) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE reminders SET status = 'cancelled', updated_at = ?
		WHERE slot_id = ? AND status = 'pending'`, time.Now().UTC(), slotID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DueReminders returns pending reminders with remind_at at or before now,
// oldest first. Times are stored in UTC so the text comparison in SQLite
// matches the instant order whatever zone the caller uses.
func (db *DB) DueReminders(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, slot_id, chat_id, user_id, remind_at, status, attempts, last_error, sent_at, created_at
		FROM reminders
		WHERE status = 'pending' AND remind_at <= ?
		ORDER BY remind_at, id
		LIMIT ?`, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reminder
	for rows.Next() {
		var (
			r       models.Reminder
			status  string
			lastErr sql.NullString
			sentAt  sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.SlotID, &r.ChatID, &r.UserID, &r.RemindAt, &status, &r.Attempts, &lastErr, &sentAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Status = models.ReminderStatus(status)
		r.LastError = lastErr.String
		if sentAt.Valid {
			t := sentAt.Time
			r.SentAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FinishReminder stores the outcome of a delivery attempt.
func (db *DB) FinishReminder(ctx context.Context, r models.Reminder) error {
	var sentAt any
	if r.SentAt != nil {
		sentAt = r.SentAt.UTC()
	}
	_, err := db.ExecContext(ctx, `
		UPDATE reminders
		SET status = ?, attempts = ?, last_error = ?, sent_at = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status), r.Attempts, nullString(r.LastError), sentAt, time.Now().UTC(), r.ID)
	return err
}

// PruneReminders deletes finished reminders last touched before cutoff.
func (db *DB) PruneReminders(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := db.ExecContext(ctx, `
		DELETE FROM reminders WHERE status != 'pending' AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
