package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedulink/internal/models"
)

func TestBackup_SnapshotIsReadable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	prefs := models.DefaultPreferences("chat:9")
	prefs.Theme = models.ThemeDark
	require.NoError(t, db.SavePreferences(ctx, prefs))

	dir := filepath.Join(t.TempDir(), "backups")
	now := time.Date(2030, 3, 4, 5, 6, 7, 0, time.UTC)
	path, err := db.Backup(ctx, dir, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schedulink_20300304_050607.db"), path)

	_, err = db.Backup(ctx, dir, now)
	assert.Error(t, err, "same timestamp must not overwrite")

	snap, err := NewDB(path, nil)
	require.NoError(t, err)
	defer snap.Close()

	got, found, err := snap.GetPreferences(ctx, "chat:9")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.ThemeDark, got.Theme)
}

func TestPruneBackups(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	now := time.Now()

	old := filepath.Join(dir, "schedulink_20200101_000000.db")
	fresh := filepath.Join(dir, "schedulink_20300101_000000.db")
	other := filepath.Join(dir, "notes.db")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
	stale := now.AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(other, stale, stale))

	n, err := db.PruneBackups(dir, 7, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	n, err = db.PruneBackups(dir, 0, now)
	require.NoError(t, err)
	assert.Zero(t, n)
}
