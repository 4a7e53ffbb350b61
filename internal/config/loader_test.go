package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Assembly.MaxRounds)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
assembly:
  max_rounds: 4
  ttl: 5m
region:
  ttl: 90s
documents:
  dir: /tmp/diagrams
log:
  level: debug
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Assembly.MaxRounds)
	assert.Equal(t, 300, cfg.Assembly.ResumeTail)
	assert.Equal(t, 5*time.Minute, cfg.Assembly.TTL)
	assert.Equal(t, 90*time.Second, cfg.Region.TTL)
	assert.Equal(t, time.Minute, cfg.Region.SweepInterval)
	assert.Equal(t, "/tmp/diagrams", cfg.Documents.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("assembly: [1, 2"), 0644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	zero := filepath.Join(dir, "zero.yaml")
	require.NoError(t, os.WriteFile(zero, []byte("assembly:\n  max_rounds: 0\nregion:\n  ttl: 0s\n"), 0644))
	_, err = LoadConfig(zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assembly.max_rounds")
	assert.Contains(t, err.Error(), "region.ttl")
}
