package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"pinback/pkg/logger"
	"pinback/pkg/models"
	"pinback/pkg/storage"
)

const currentVersion = 1

// Checkpoint is the result of a complete crawl, saved so an interrupted
// archive run can resume without walking the index again
type Checkpoint struct {
	Username  string    `json:"username"`
	CacheIDs  []string  `json:"cache_ids"`
	CrawledAt time.Time `json:"crawled_at"`
	Version   int       `json:"version"`
}

// New builds a checkpoint from a finished crawl
func New(username string, entries []models.CacheEntry) *Checkpoint {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.CacheID)
	}
	return &Checkpoint{
		Username:  username,
		CacheIDs:  ids,
		CrawledAt: time.Now(),
		Version:   currentVersion,
	}
}

// Entries rebuilds the cache entries, dropping any duplicates
func (c *Checkpoint) Entries() []models.CacheEntry {
	acc := models.NewCrawlAccumulator()
	acc.Add(c.CacheIDs...)
	return acc.Entries()
}

// Manager reads and writes one user's checkpoint file
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager stores checkpoints in the per-user data directory
func NewManager(username string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), username)
}

// NewManagerAt stores checkpoints below dir
func NewManagerAt(dir, username string) (*Manager, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}
	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("%s.crawl.json", username)),
		logger:         logger.GetLogger(),
	}, nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load returns the saved checkpoint, or nil if there is none
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != currentVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"username":   cp.Username,
		"entries":    len(cp.CacheIDs),
		"crawled_at": cp.CrawledAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := storage.WriteFileAtomic(m.checkpointPath, data, 0600); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"username": cp.Username,
		"entries":  len(cp.CacheIDs),
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "pinback")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "pinback")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "pinback")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "pinback")
		}
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
