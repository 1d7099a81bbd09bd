package database

import (
	"context"
	"database/sql"
	"time"

	"schedulink/internal/models"
)

// AppendJournal records a book or cancel attempt.
func (db *DB) AppendJournal(ctx context.Context, e models.JournalEntry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC()
	res, err := db.ExecContext(ctx, `
		INSERT INTO booking_journal (slot_id, user_id, action, outcome, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SlotID, e.UserID, e.Action, e.Outcome, nullString(e.Reason), e.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentJournal returns the newest entries first.
func (db *DB) RecentJournal(ctx context.Context, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, slot_id, user_id, action, outcome, reason, created_at
		FROM booking_journal
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.SlotID, &e.UserID, &e.Action, &e.Outcome, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneJournal deletes entries older than the given duration.
// Returns the number of deleted rows.
func (db *DB) PruneJournal(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := db.ExecContext(ctx, `DELETE FROM booking_journal WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
