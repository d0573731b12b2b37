package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, Default(), cfg)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "default config should be written to disk")
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "addr: \":9090\"\nhistory_limit: 20\njoin_mode: replace\npersist_timeout: 2s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ROOMCHAT_HISTORY_LIMIT", "30")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30, cfg.HistoryLimit, "env must override file")
	assert.Equal(t, JoinModeReplace, cfg.JoinMode)
	assert.Equal(t, 2*time.Second, cfg.PersistTimeout)
	assert.Equal(t, Default().MaxHistoryLimit, cfg.MaxHistoryLimit)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.JoinMode = "merge"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.StoreDriver = "mongo"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.MaxHistoryLimit = bad.HistoryLimit - 1
	assert.Error(t, bad.Validate())
}

func TestUpdateFromKeepsZeroValues(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", JoinMode: JoinModeReplace})

	assert.Equal(t, ":1234", cfg.Addr)
	assert.Equal(t, JoinModeReplace, cfg.JoinMode)
	assert.Equal(t, Default().HistoryLimit, cfg.HistoryLimit)
}
