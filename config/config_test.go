package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orapiler.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.IncrementalSync)
	assert.False(t, cfg.UseExternalTypeMap)
	assert.Empty(t, cfg.ExternalTypeMap)
	assert.Equal(t, 0, cfg.Concurrency)
}

func TestLoad(t *testing.T) {
	path := writeTemp(t, `
incremental_sync: true
use_external_type_map: true
external_type_map: /etc/orapiler/types.json
concurrency: 4
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.IncrementalSync)
	assert.True(t, cfg.UseExternalTypeMap)
	assert.Equal(t, "/etc/orapiler/types.json", cfg.ExternalTypeMap)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := writeTemp(t, "concurrency: -1\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Concurrency)
	assert.False(t, cfg.IncrementalSync)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeTemp(t, "concurency: 4\n") // misspelled
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}
