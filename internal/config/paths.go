package config

import (
	"os"
	"path/filepath"
)

// AppName names the XDG subdirectories.
const AppName = "compgraph"

// CacheDir returns $XDG_CACHE_HOME/compgraph, defaulting to ~/.cache/compgraph.
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns $XDG_DATA_HOME/compgraph, defaulting to ~/.local/share/compgraph.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigDir returns $XDG_CONFIG_HOME/compgraph, defaulting to ~/.config/compgraph.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultStorePath is the sqlite database used when no store is configured.
func DefaultStorePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "graph.db"), nil
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}
