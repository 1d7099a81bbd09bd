package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"schedulink/internal/models"
)

// GetPreferences returns stored preferences for profile.
// If none exist, returns defaults and found=false.
func (db *DB) GetPreferences(ctx context.Context, profile string) (prefs models.Preferences, found bool, err error) {
	row := db.QueryRowContext(ctx, `
		SELECT profile, theme, role, visited, created_at, updated_at
		FROM preferences
		WHERE profile = ?`, profile)

	var theme, role string
	err = row.Scan(&prefs.Profile, &theme, &role, &prefs.Visited, &prefs.CreatedAt, &prefs.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultPreferences(profile), false, nil
		}
		return models.Preferences{}, false, err
	}

	// Unknown values from older rows fall back to defaults.
	def := models.DefaultPreferences(profile)
	if t, ok := models.ParseTheme(theme); ok {
		prefs.Theme = t
	} else {
		prefs.Theme = def.Theme
	}
	if r, ok := models.ParseRole(role); ok {
		prefs.Role = r
	} else {
		prefs.Role = def.Role
	}
	return prefs, true, nil
}

// SavePreferences creates or updates preferences for prefs.Profile.
func (db *DB) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	now := time.Now().UTC()

	_, err := db.ExecContext(ctx, `
		INSERT INTO preferences (profile, theme, role, visited, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			theme = excluded.theme,
			role = excluded.role,
			visited = excluded.visited,
			updated_at = excluded.updated_at`,
		prefs.Profile, string(prefs.Theme), string(prefs.Role), prefs.Visited, now, now)
	return err
}

// DeletePreferences forgets a profile.
func (db *DB) DeletePreferences(ctx context.Context, profile string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM preferences WHERE profile = ?`, profile)
	return err
}
