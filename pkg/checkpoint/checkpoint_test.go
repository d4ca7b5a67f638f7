package checkpoint

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinback/pkg/models"
)

func TestSaveLoadDelete(t *testing.T) {
	m, err := NewManagerAt(t.TempDir(), "alice")
	require.NoError(t, err)

	cp, err := m.Load()
	require.NoError(t, err)
	assert.Nil(t, cp)
	assert.False(t, m.Exists())

	entries := []models.CacheEntry{
		models.NewCacheEntry("/cached/a/"),
		models.NewCacheEntry("/cached/b/"),
	}
	require.NoError(t, m.Save(New("alice", entries)))
	assert.True(t, m.Exists())

	loaded, err := m.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "alice", loaded.Username)
	assert.Equal(t, entries, loaded.Entries())
	assert.False(t, loaded.CrawledAt.IsZero())

	require.NoError(t, m.Delete())
	assert.False(t, m.Exists())
	require.NoError(t, m.Delete(), "deleting twice is not an error")
}

func TestEntriesDeduplicates(t *testing.T) {
	cp := &Checkpoint{CacheIDs: []string{"/cached/a/", "/cached/a/", "/cached/b/"}}
	assert.Len(t, cp.Entries(), 2)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	m, err := NewManagerAt(t.TempDir(), "alice")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(m.Path(), []byte("{not json"), 0600))
	_, err = m.Load()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(m.Path(), []byte(`{"username":"alice","version":99}`), 0600))
	_, err = m.Load()
	assert.ErrorContains(t, err, "version")
}

func TestNewManagerUsesXDGDataHome(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG_DATA_HOME only applies on unix-like systems")
	}
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	m, err := NewManager("bob")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "pinback", "checkpoints", "bob.crawl.json"), m.Path())
}

func TestNewManagerRequiresUsername(t *testing.T) {
	_, err := NewManagerAt(t.TempDir(), "")
	assert.Error(t, err)
}
