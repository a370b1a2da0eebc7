package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// ExportCleanupService deletes archived exports once they are older than the
// retention period.
type ExportCleanupService struct {
	mu            sync.RWMutex
	storage       *ExportStorageService
	retention     time.Duration
	checkInterval time.Duration
	lastRun       time.Time
	lastRemoved   int
}

// NewExportCleanupService creates the cleanup worker. Retention comes from
// EXPORT_RETENTION_HOURS and defaults to 24 hours.
func NewExportCleanupService(storage *ExportStorageService) *ExportCleanupService {
	retention := 24 * time.Hour
	if v := os.Getenv("EXPORT_RETENTION_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			retention = time.Duration(hours) * time.Hour
		}
	}
	return &ExportCleanupService{
		storage:       storage,
		retention:     retention,
		checkInterval: 15 * time.Minute,
	}
}

// Start runs cleanup passes until ctx is cancelled.
func (s *ExportCleanupService) Start(ctx context.Context) {
	log.Printf("Export cleanup started: archived exports are kept for %s", s.retention)

	s.Cleanup(time.Now())

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Export cleanup stopping...")
			return
		case <-ticker.C:
			s.Cleanup(time.Now())
		}
	}
}

// Cleanup removes every archived PNG last modified before now minus the
// retention period and returns how many were removed.
func (s *ExportCleanupService) Cleanup(now time.Time) int {
	entries, err := os.ReadDir(s.storage.GetStorageDir())
	if err != nil {
		log.Printf("Export cleanup: failed to list exports: %v", err)
		return 0
	}

	cutoff := now.Add(-s.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.storage.GetStorageDir(), entry.Name())); err != nil {
			log.Printf("Warning: failed to remove expired export %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	s.mu.Lock()
	s.lastRun = now
	s.lastRemoved = removed
	s.mu.Unlock()

	if removed > 0 {
		log.Printf("Export cleanup: removed %d expired exports", removed)
	}
	return removed
}

// Status reports when the last pass ran and how many files it removed.
func (s *ExportCleanupService) Status() (time.Time, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastRemoved
}
