package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BackupManager copies the SQLite database file to a destination path.
// The storage layer only ever targets SQLite (§1's Non-goals exclude DB
// driver plurality), so this is a plain file copy rather than a
// driver-dispatched operation.
type BackupManager struct {
	logger *Logger
	dbPath string
}

// NewBackupManager creates a new backup manager for the database file
// at dbPath.
func NewBackupManager(logger *Logger, dbPath string) *BackupManager {
	return &BackupManager{logger: logger.WithComponent("backup"), dbPath: dbPath}
}

// Backup copies the configured database file to destPath.
func (b *BackupManager) Backup(ctx context.Context, destPath string) error {
	if b.dbPath == "" {
		return fmt.Errorf("database path not configured")
	}
	return b.BackupWithConfig(ctx, b.dbPath, destPath)
}

// BackupWithConfig copies sourcePath to destPath, creating the
// destination directory if needed.
func (b *BackupManager) BackupWithConfig(ctx context.Context, sourcePath, destPath string) error {
	start := time.Now()
	b.logger.Info("starting database backup", "source", sourcePath, "destination", destPath)

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		b.logger.LogBackupOperation("create directory", destPath, 0, err)
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	size, err := copyFile(sourcePath, destPath)
	if err != nil {
		b.logger.LogBackupOperation("backup", destPath, size, err)
		return fmt.Errorf("failed to copy database: %w", err)
	}

	b.logger.LogBackupOperation("backup", destPath, size, nil)
	b.logger.Info("database backup completed", "destination", destPath,
		"size_mb", float64(size)/1024/1024, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Restore copies a backup file to destPath, overwriting it.
func (b *BackupManager) Restore(ctx context.Context, backupPath, destPath string) error {
	start := time.Now()
	b.logger.Info("starting database restore", "backup", backupPath, "destination", destPath)

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	size, err := copyFile(backupPath, destPath)
	if err != nil {
		b.logger.LogBackupOperation("restore", destPath, size, err)
		return fmt.Errorf("failed to restore database: %w", err)
	}

	b.logger.LogBackupOperation("restore", destPath, size, nil)
	b.logger.Info("database restore completed", "backup", backupPath, "destination", destPath,
		"size_mb", float64(size)/1024/1024, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func copyFile(src, dst string) (int64, error) {
	sourceFile, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destFile.Close()

	size, err := io.Copy(destFile, sourceFile)
	if err != nil {
		return size, fmt.Errorf("failed to copy file: %w", err)
	}
	if err := destFile.Sync(); err != nil {
		return size, fmt.Errorf("failed to sync file: %w", err)
	}
	return size, nil
}

// PeriodicBackup runs backups of the configured source file on a
// fixed interval until stopped.
type PeriodicBackup struct {
	manager    *BackupManager
	sourcePath string
	destDir    string
	interval   time.Duration
	logger     *Logger
	stopChan   chan struct{}
}

// NewPeriodicBackup creates a periodic backup runner.
func NewPeriodicBackup(manager *BackupManager, sourcePath, destDir string, interval time.Duration, logger *Logger) *PeriodicBackup {
	return &PeriodicBackup{
		manager: manager, sourcePath: sourcePath, destDir: destDir,
		interval: interval, logger: logger.WithComponent("periodic-backup"),
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic backups; call Stop or cancel ctx to end it.
func (p *PeriodicBackup) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("periodic backup started", "source", p.sourcePath, "destination", p.destDir, "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("periodic backup stopped")
			return
		case <-p.stopChan:
			p.logger.Info("periodic backup stopped")
			return
		case <-ticker.C:
			timestamp := time.Now().Format("20060102-150405")
			backupPath := filepath.Join(p.destDir, fmt.Sprintf("beacon-backup-%s.db", timestamp))
			if err := p.manager.BackupWithConfig(ctx, p.sourcePath, backupPath); err != nil {
				p.logger.Error("periodic backup failed", "error", err)
			} else {
				p.logger.Info("periodic backup completed", "path", backupPath)
			}
		}
	}
}

// Stop ends a running periodic backup loop.
func (p *PeriodicBackup) Stop() {
	close(p.stopChan)
}

// CleanOldBackups removes beacon-backup-*.db files older than maxAge.
func CleanOldBackups(backupDir string, maxAge time.Duration, logger *Logger) error {
	logger.Info("cleaning old backups", "directory", backupDir, "max_age", maxAge)

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	var deleted int
	for _, entry := range entries {
		if entry.IsDir() || !isBackupFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logger.Warn("failed to get file info", "file", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(backupDir, entry.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn("failed to delete old backup", "file", path, "error", err)
			} else {
				logger.Info("deleted old backup", "file", path, "age", time.Since(info.ModTime()))
				deleted++
			}
		}
	}

	logger.Info("old backup cleanup completed", "deleted", deleted)
	return nil
}

func isBackupFile(name string) bool {
	return filepath.Ext(name) == ".db" && strings.HasPrefix(name, "beacon-backup-")
}
