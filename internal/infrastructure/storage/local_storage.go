package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned for keys that escape the storage root
var ErrInvalidKey = errors.New("invalid storage key")

// ExportKey builds a collision-free key: exports/<YYYY-MM-DD>/<uuid>/<file>
func ExportKey(now time.Time, fileName string) string {
	return path.Join("exports", now.Format("2006-01-02"), uuid.NewString(), path.Base(filepath.ToSlash(fileName)))
}

// LocalExportStorage writes export files under a directory. Its download
// URLs are file:// links and never expire.
type LocalExportStorage struct {
	root string
}

// NewLocalExportStorage creates the root directory if needed
func NewLocalExportStorage(root string) (*LocalExportStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalExportStorage{root: abs}, nil
}

// Root returns the absolute storage directory
func (s *LocalExportStorage) Root() string {
	return s.root
}

// Upload writes data to root/key, creating parent directories
func (s *LocalExportStorage) Upload(ctx context.Context, storageKey string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(storageKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// GenerateDownloadURL returns a file:// URL for the stored file
func (s *LocalExportStorage) GenerateDownloadURL(
	_ context.Context,
	storageKey string,
	_ time.Duration,
) (string, time.Time, error) {
	full, err := s.resolve(storageKey)
	if err != nil {
		return "", time.Time{}, err
	}
	if _, err := os.Stat(full); err != nil {
		return "", time.Time{}, fmt.Errorf("export file not found: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(full)}
	return u.String(), time.Time{}, nil
}

// Path returns the filesystem path of a key
func (s *LocalExportStorage) Path(storageKey string) (string, error) {
	return s.resolve(storageKey)
}

func (s *LocalExportStorage) resolve(storageKey string) (string, error) {
	if storageKey == "" {
		return "", ErrEmptyKey
	}
	clean := filepath.Clean(filepath.FromSlash(storageKey))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, storageKey)
	}
	return filepath.Join(s.root, clean), nil
}
