package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	require.Equal(t, 64, cfg.Pool.Capacity)
	require.Equal(t, "lru", cfg.Pool.Replacer)
	require.False(t, cfg.WAL.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corestore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pool:
  capacity: 128
  replacer: clock
wal:
  enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Pool.Capacity)
	require.Equal(t, "clock", cfg.Pool.Replacer)
	require.True(t, cfg.WAL.Enabled)
	require.Equal(t, 4096, cfg.Storage.PageSize, "unset fields keep their default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
