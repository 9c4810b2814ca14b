package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/compgraph/pkg/document"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
)

// isolate points every XDG directory at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	return dir
}

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "data", AppName, "graph.db"), cfg.Store)
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	require.Equal(t, filepath.Join(dir, "cache", AppName), cfg.Cache.Dir)
	require.Equal(t, document.JSON, cfg.Encoding())
	require.Empty(t, cfg.Policy.Rules)
	require.False(t, cfg.Trace)
}

func TestLoadDefaultConfigFile(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "config", AppName, "config.toml"), `
store = "memory:"
trace = true

[cache]
ttl = "5m"

[import]
owner = "alice"

[export]
format = "yaml"

[[policy.rules]]
when = 'action == "add_children" && kind == "note"'
message = "notes cannot contain children"
`)

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	require.Equal(t, "memory:", cfg.Store)
	require.True(t, cfg.Trace)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.True(t, cfg.Cache.Enabled, "unset keys keep their defaults")
	require.Equal(t, "alice", cfg.Import.Owner)
	require.Equal(t, document.YAML, cfg.Encoding())
	require.Len(t, cfg.Policy.Rules, 1)
	require.Equal(t, "notes cannot contain children", cfg.Policy.Rules[0].Message)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.toml")
	writeConfig(t, path, "store = \"memory:\"\n[cache]\nenabled = true\n")
	t.Setenv("COMPGRAPH_STORE", "redis://localhost:6379/1")
	t.Setenv("COMPGRAPH_CACHE_ENABLED", "false")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, "redis://localhost:6379/1", cfg.Store)
	require.False(t, cfg.Cache.Enabled)
}

func TestFlagOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("COMPGRAPH_STORE", "memory:")

	v := viper.New()
	v.Set("store", "/tmp/explicit.db")
	cfg, err := Load(v, "")
	require.NoError(t, err)
	require.Equal(t, "/tmp/explicit.db", cfg.Store)
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	_, err := Load(viper.New(), filepath.Join(dir, "missing.toml"))
	require.True(t, cerrors.Is(err, cerrors.ErrCodeInvalidInput), "missing explicit file: %v", err)

	bad := filepath.Join(dir, "bad.toml")
	writeConfig(t, bad, "[export]\nformat = \"xml\"\n")
	_, err = Load(viper.New(), bad)
	require.True(t, cerrors.Is(err, cerrors.ErrCodeInvalidInput), "unknown format: %v", err)

	empty := filepath.Join(dir, "empty-rule.toml")
	writeConfig(t, empty, "[[policy.rules]]\nwhen = \"  \"\n")
	_, err = Load(viper.New(), empty)
	require.True(t, cerrors.Is(err, cerrors.ErrCodeInvalidInput), "empty rule: %v", err)
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")
	dir, err := CacheDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/tmp/custom-cache", AppName), dir)

	t.Setenv("XDG_DATA_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	data, err := DataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "share", AppName), data)
}
