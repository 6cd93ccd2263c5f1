package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, DefaultMaxTokenLen, cfg.Index.MaxTokenLen)
	assert.Equal(t, DefaultMaxBlockLines, cfg.Index.MaxBlockLines)
	assert.Equal(t, DefaultWindowSize, cfg.Index.WindowSize)
	assert.Equal(t, DefaultWindowOverlap, cfg.Index.WindowOverlap)
	assert.Equal(t, DefaultCoocWindowSize, cfg.Train.CoocWindowSize)
	assert.InDelta(t, DefaultSaliencePercent, cfg.Train.SaliencePercent, 1e-9)
	assert.Equal(t, DefaultTopK, cfg.Query.TopK)
	assert.Equal(t, float64(DefaultMaxDFPercent), cfg.Query.MaxDFPercent)
	assert.Equal(t, "centroid", cfg.Query.ClusterMode)
}

func TestLoadWithNoFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Project.Root)
	assert.Equal(t, DefaultTopK, cfg.Query.TopK)
}

func TestLoadOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".config"), 0o755))
	yamlBody := `
query:
  top_k: 5
  cluster_mode: concentration
index:
  max_token_len: 64
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".config", "xerp.yaml"), []byte(yamlBody), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Query.TopK)
	assert.Equal(t, "concentration", cfg.Query.ClusterMode)
	assert.Equal(t, 64, cfg.Index.MaxTokenLen)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultMaxCandidates, cfg.Query.MaxCandidates)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	otherRoot := t.TempDir()
	t.Setenv("XERP_ROOT", otherRoot)
	t.Setenv("XERP_DB_PATH", filepath.Join(otherRoot, "custom.db"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, otherRoot, cfg.Project.Root)
	assert.Equal(t, filepath.Join(otherRoot, "custom.db"), cfg.Project.DBPath)
}

func TestLoadFromExplicitConfigPath(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(explicit, []byte("query:\n  top_k: 7\n"), 0o644))

	cfg, err := LoadFrom(dir, explicit)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Query.TopK)
}

func TestLoadFromMissingExplicitConfigPathErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFrom(dir, filepath.Join(dir, "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestResolvedClusterMode(t *testing.T) {
	q := Query{ClusterMode: "concentration"}
	assert.Equal(t, "concentration", string(q.ResolvedClusterMode()))

	q.ClusterMode = "bogus"
	assert.Equal(t, "centroid", string(q.ResolvedClusterMode()))
}
