package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const backupPrefix = "schedulink_"

// Backup writes a consistent snapshot of the database into dir and returns
// the file path. VACUUM INTO works while the WAL is active.
func (db *DB) Backup(ctx context.Context, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s%s.db", backupPrefix, now.Format("20060102_150405")))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("backup %s already exists", path)
	}

	db.logger.Info().Str("path", path).Msg("Performing database backup")
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	return path, nil
}

// PruneBackups removes snapshots in dir older than retentionDays and returns
// how many were deleted. Files not written by Backup are left alone.
func (db *DB) PruneBackups(dir string, retentionDays int, now time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	removed := 0
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			db.logger.Warn().Err(err).Str("file", name).Msg("Failed to delete old backup")
			continue
		}
		db.logger.Info().Str("file", name).Msg("Deleted old backup")
		removed++
	}
	return removed, nil
}
