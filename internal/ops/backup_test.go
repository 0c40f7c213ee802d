package ops

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beacon-search/beacon/internal/config"
)

func testLogger(t *testing.T) *Logger {
	t.Helper()
	return NewLoggerWithWriter(&config.Logging{Level: "error", Format: "text"}, io.Discard)
}

func TestBackupManager_BackupAndRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "beacon.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("fake sqlite contents"), 0644))

	mgr := NewBackupManager(testLogger(t), dbPath)
	backupPath := filepath.Join(dir, "backups", "snapshot.db")
	require.NoError(t, mgr.Backup(context.Background(), backupPath))

	contents, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, "fake sqlite contents", string(contents))

	restorePath := filepath.Join(dir, "restored.db")
	require.NoError(t, mgr.Restore(context.Background(), backupPath, restorePath))
	restored, err := os.ReadFile(restorePath)
	require.NoError(t, err)
	assert.Equal(t, "fake sqlite contents", string(restored))
}

func TestBackupManager_RestoreMissingFileErrors(t *testing.T) {
	mgr := NewBackupManager(testLogger(t), "")
	err := mgr.Restore(context.Background(), "/nonexistent/backup.db", "/tmp/out.db")
	assert.Error(t, err)
}

func TestCleanOldBackups_RemovesOnlyExpiredBackupFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "beacon-backup-20200101-000000.db")
	fresh := filepath.Join(dir, "beacon-backup-20990101-000000.db")
	notABackup := filepath.Join(dir, "other.db")

	for _, p := range []string{old, fresh, notABackup} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}
	require.NoError(t, os.Chtimes(old, time.Now().Add(-48*time.Hour), time.Now().Add(-48*time.Hour)))

	require.NoError(t, CleanOldBackups(dir, 24*time.Hour, testLogger(t)))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(notABackup)
	assert.NoError(t, err)
}
