package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "formease_", cfg.Sqlite.Prefix)
	assert.Equal(t, time.Second, cfg.Fill.CacheCooldown())
	assert.Equal(t, 30*time.Second, cfg.Fill.RunTimeout())
	assert.Equal(t, 5*time.Second, cfg.Fill.FieldTimeout())
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
log:
  level: debug
fill:
  runTimeoutMS: 1500
  fieldTimeoutMS: -3
  strictOptions: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"console"}, cfg.Log.Writer)
	assert.Equal(t, 1500*time.Millisecond, cfg.Fill.RunTimeout())
	assert.Equal(t, 5*time.Second, cfg.Fill.FieldTimeout())
	assert.True(t, cfg.Fill.StrictOptions)
	assert.Equal(t, 1000, cfg.Fill.CacheCooldownMS)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fill: [1, 2"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}
