package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan:
// - Default() carries the documented defaults and validates
// - Load() without a config file returns defaults
// - Load() merges a config file over defaults
// - Environment variables override the file
// - Validate() collects multiple problems

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "filesystem", cfg.Sync.Type)
	assert.Equal(t, ".kb/mind/sync/registry.json", cfg.Sync.Path)
	assert.True(t, cfg.Sync.SoftDelete)
	assert.Equal(t, 30, cfg.Sync.SoftDeleteTTL)
	assert.Equal(t, 100, cfg.Sync.BatchMaxSize)

	assert.Equal(t, 8000, cfg.Pack.TotalTokens)
	assert.Equal(t, "middle", cfg.Pack.Truncation)
	assert.Equal(t, 2200, cfg.Pack.Caps["api_signatures"])

	assert.Equal(t, 800, cfg.Indexer.TimeBudgetMs)
	assert.Equal(t, int64(1536*1024), cfg.Indexer.MaxFileSizeBytes)

	assert.Equal(t, 60, cfg.Query.CacheTTL)
	assert.Equal(t, 500, cfg.Query.Limit)
	assert.Equal(t, 5, cfg.Query.Depth)
	assert.Equal(t, "id", cfg.Query.PathMode)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Query.Limit, cfg.Query.Limit)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".kb", "mind")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(
		"query:\n  limit: 50\npack:\n  truncation: end\n"), 0o644))

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Query.Limit)
	assert.Equal(t, "end", cfg.Pack.Truncation)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Query.Depth)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".kb", "mind")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("query:\n  limit: 50\n"), 0o644))

	t.Setenv("MIND_QUERY_LIMIT", "25")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Query.Limit)
}

func TestValidate_CollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Sync.Type = "postgres"
	cfg.Pack.Truncation = "sideways"
	cfg.Query.PathMode = "weird"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.type")
	assert.Contains(t, err.Error(), "pack.truncation")
	assert.Contains(t, err.Error(), "query.path_mode")
}
