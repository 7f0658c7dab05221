package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"coophours/internal/config"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// BackupService snapshots the ledger database on a schedule. The reservation
// ledger is the cooperative's billing record, so snapshots run online via
// VACUUM INTO and old ones are pruned by age.
type BackupService struct {
	dbPath string
	config config.BackupConfig
	logger *zerolog.Logger
}

func NewBackupService(dbPath string, cfg config.BackupConfig, logger *zerolog.Logger) *BackupService {
	return &BackupService{
		dbPath: dbPath,
		config: cfg,
		logger: logger,
	}
}

// Start runs the backup loop until ctx is canceled. The first snapshot is
// taken immediately.
func (s *BackupService) Start(ctx context.Context) {
	if !s.config.Enabled {
		s.logger.Info().Msg("backups disabled")
		return
	}

	interval := s.interval()
	s.logger.Info().Dur("interval", interval).Msg("backup loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.PerformBackup(); err != nil {
		s.logger.Error().Err(err).Msg("initial backup failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PerformBackup(); err != nil {
				s.logger.Error().Err(err).Msg("scheduled backup failed")
			}
			s.CleanupOldBackups()
		}
	}
}

func (s *BackupService) interval() time.Duration {
	if s.config.Schedule == "" {
		return 24 * time.Hour
	}
	d, err := time.ParseDuration(s.config.Schedule)
	if err != nil {
		s.logger.Warn().Err(err).Str("schedule", s.config.Schedule).Msg("bad backup schedule, using 24h")
		return 24 * time.Hour
	}
	return d
}

// PerformBackup writes one timestamped snapshot of the ledger database.
func (s *BackupService) PerformBackup() error {
	if err := os.MkdirAll(s.config.StoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(s.config.StoragePath,
		fmt.Sprintf("ledger_%s.db", time.Now().Format("20060102_150405")))

	db, err := sql.Open("sqlite3", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open source database: %w", err)
	}
	defer db.Close()

	// VACUUM INTO is a consistent online snapshot.
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		s.logger.Warn().Err(err).Msg("VACUUM INTO failed, falling back to file copy")
		return s.copyBackup(backupPath)
	}

	s.logger.Info().Str("path", backupPath).Msg("backup written")
	return nil
}

// copyBackup is the last-resort path. A plain copy can catch SQLite
// mid-write, so it only runs when VACUUM INTO is unavailable.
func (s *BackupService) copyBackup(backupPath string) error {
	source, err := os.Open(s.dbPath)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(backupPath)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err := io.Copy(destination, source); err != nil {
		return err
	}

	s.logger.Info().Str("path", backupPath).Msg("fallback backup written")
	return nil
}

// CleanupOldBackups removes snapshots older than the retention window.
func (s *BackupService) CleanupOldBackups() {
	if s.config.RetentionDays <= 0 {
		return
	}

	files, err := os.ReadDir(s.config.StoragePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read backup directory for cleanup")
		return
	}

	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", file.Name()).Msg("deleting old backup")
			os.Remove(filepath.Join(s.config.StoragePath, file.Name()))
		}
	}
}
