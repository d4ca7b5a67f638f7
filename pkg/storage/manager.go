package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pinback/pkg/models"
)

// Manager owns the archive output directory. Each bookmark is archived
// into its own subdirectory named after its bookmark id.
type Manager struct {
	outputDir string
}

// NewManager creates the output directory if needed
func NewManager(outputDir string) (*Manager, error) {
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// OutputDir returns the output directory path
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// EntryDir returns the destination directory for a bookmark
func (m *Manager) EntryDir(bookmarkID string) string {
	return filepath.Join(m.outputDir, bookmarkID)
}

// IsArchived reports whether the bookmark's directory already exists.
// The directory's contents are not inspected.
func (m *Manager) IsArchived(bookmarkID string) bool {
	info, err := os.Stat(m.EntryDir(bookmarkID))
	return err == nil && info.IsDir()
}

// Discard removes a bookmark's directory so a later run tries it again
func (m *Manager) Discard(bookmarkID string) error {
	if !models.ValidBookmarkID(bookmarkID) {
		return fmt.Errorf("refusing to remove %q", bookmarkID)
	}
	if err := os.RemoveAll(m.EntryDir(bookmarkID)); err != nil {
		return fmt.Errorf("failed to remove %s: %w", bookmarkID, err)
	}
	return nil
}

// ArchivedCount counts bookmark directories in the output directory
func (m *Manager) ArchivedCount() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			count++
		}
	}
	return count, nil
}

// WriteFileAtomic writes data to path through a temporary file and rename,
// so readers never see a partial file
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// SaveAtomic copies r to path through a temporary file and rename
func SaveAtomic(path string, r io.Reader, perm os.FileMode) error {
	return writeAtomic(path, perm, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}

func writeAtomic(path string, perm os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	err = fill(tmp)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
