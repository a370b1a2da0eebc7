package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ExportStorageService archives exported PNGs on disk so they can be served
// back under /exports.
type ExportStorageService struct {
	storageDir string
}

// NewExportStorageService creates the archive rooted at EXPORT_DIR.
func NewExportStorageService() *ExportStorageService {
	storageDir := os.Getenv("EXPORT_DIR")
	if storageDir == "" {
		storageDir = "./data/exports"
	}
	return NewExportStorageServiceAt(storageDir)
}

// NewExportStorageServiceAt creates the archive rooted at storageDir.
func NewExportStorageServiceAt(storageDir string) *ExportStorageService {
	// Failure is not fatal here; writes will report it
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		log.Printf("Warning: could not create export directory: %v", err)
	}
	return &ExportStorageService{
		storageDir: storageDir,
	}
}

// Save writes the PNG under a unique name derived from filename and returns
// the stored name.
func (s *ExportStorageService) Save(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty export data")
	}

	stored := uuid.New().String() + "-" + filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(s.storageDir, stored), data, 0644); err != nil {
		return "", fmt.Errorf("failed to save export: %w", err)
	}
	return stored, nil
}

// GetStorageDir returns the storage directory path
func (s *ExportStorageService) GetStorageDir() string {
	return s.storageDir
}
