// Package audit provides file-based audit persistence in JSON Lines format
// with daily files and retention cleanup.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/super-pm-ai/superpm-mcp/internal/domain/audit"
)

// FileStoreConfig holds configuration for the file-based audit store.
type FileStoreConfig struct {
	// Dir is the directory where audit files are stored.
	Dir string
	// RetentionDays is the number of days to keep audit files (default 7).
	RetentionDays int
}

// FileStore implements audit.Store with one JSON-lines file per day.
type FileStore struct {
	dir           string
	retentionDays int
	currentFile   *os.File
	currentDate   string
	mu            sync.Mutex
	logger        *slog.Logger
	closed        bool
}

// auditFilePattern matches audit log filenames: audit-YYYY-MM-DD.log
var auditFilePattern = regexp.MustCompile(`^audit-(\d{4}-\d{2}-\d{2})\.log$`)

// NewFileStore creates a file-based audit store. It creates the directory
// if needed, opens today's file, and runs a retention sweep.
func NewFileStore(cfg FileStoreConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	s := &FileStore{
		dir:           cfg.Dir,
		retentionDays: cfg.RetentionDays,
		logger:        logger,
	}

	if err := s.openForDate(time.Now().UTC().Format("2006-01-02")); err != nil {
		return nil, err
	}
	s.sweepRetention()

	return s, nil
}

// Write appends a record to the current day's file, rolling over at the
// date boundary.
func (s *FileStore) Write(ctx context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audit store is closed")
	}

	today := time.Now().UTC().Format("2006-01-02")
	if today != s.currentDate {
		if err := s.rotate(today); err != nil {
			return err
		}
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	line = append(line, '\n')

	if _, err := s.currentFile.Write(line); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// Close flushes and closes the current file. Subsequent writes fail.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.currentFile != nil {
		if err := s.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close audit file: %w", err)
		}
		s.currentFile = nil
	}
	return nil
}

// openForDate opens (appending) the audit file for the given date.
// Caller holds the lock, or the store is not yet shared.
func (s *FileStore) openForDate(date string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("audit-%s.log", date))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open audit file: %w", err)
	}
	s.currentFile = f
	s.currentDate = date
	return nil
}

// rotate closes the current file and opens the one for date.
// Caller holds the lock.
func (s *FileStore) rotate(date string) error {
	if s.currentFile != nil {
		_ = s.currentFile.Close()
		s.currentFile = nil
	}
	if err := s.openForDate(date); err != nil {
		return err
	}
	s.sweepRetentionLocked()
	return nil
}

// sweepRetention removes audit files older than the retention window.
func (s *FileStore) sweepRetention() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepRetentionLocked()
}

func (s *FileStore) sweepRetentionLocked() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays).Format("2006-01-02")

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("audit retention sweep failed", "error", err)
		return
	}

	for _, entry := range entries {
		matches := auditFilePattern.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		if matches[1] < cutoff {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("failed to remove expired audit file", "path", path, "error", err)
			} else {
				s.logger.Debug("removed expired audit file", "path", path)
			}
		}
	}
}

// Compile-time interface verification.
var _ audit.Store = (*FileStore)(nil)
