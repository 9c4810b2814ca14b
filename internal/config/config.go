// Package config loads compgraph settings from defaults, a TOML config file,
// COMPGRAPH_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matzehuels/compgraph/pkg/document"
	cerrors "github.com/matzehuels/compgraph/pkg/errors"
	"github.com/matzehuels/compgraph/pkg/policy"
)

// EnvPrefix prefixes environment overrides: COMPGRAPH_STORE, COMPGRAPH_CACHE_TTL, ...
const EnvPrefix = "COMPGRAPH"

// Config is the resolved configuration.
type Config struct {
	// Store is a DSN: a file path or sqlite:<path>, memory:, redis://..., mongodb://...
	Store  string       `mapstructure:"store"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Types  TypesConfig  `mapstructure:"types"`
	Policy PolicyConfig `mapstructure:"policy"`
	Import ImportConfig `mapstructure:"import"`
	Export ExportConfig `mapstructure:"export"`
	Trace  bool         `mapstructure:"trace"`
}

// CacheConfig controls the child reference cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	Dir     string        `mapstructure:"dir"`
}

// TypesConfig points at an optional type catalog.
type TypesConfig struct {
	Catalog string `mapstructure:"catalog"`
}

// PolicyConfig lists the deny rules applied to every mutation.
type PolicyConfig struct {
	Rules []policy.Rule `mapstructure:"rules"`
}

type ImportConfig struct {
	Owner string `mapstructure:"owner"`
}

type ExportConfig struct {
	Format string `mapstructure:"format"`
}

// Defaults returns the configuration used when nothing is set.
// Paths that depend on the environment are resolved by Load.
func Defaults() Config {
	return Config{
		Cache:  CacheConfig{Enabled: true, TTL: 24 * time.Hour},
		Export: ExportConfig{Format: string(document.JSON)},
	}
}

// SetDefaults registers Defaults with v so that env overrides of nested
// keys are seen by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("store", d.Store)
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("types.catalog", d.Types.Catalog)
	v.SetDefault("policy.rules", []map[string]any{})
	v.SetDefault("import.owner", d.Import.Owner)
	v.SetDefault("export.format", d.Export.Format)
	v.SetDefault("trace", d.Trace)
}

// Load reads configuration into a Config. An explicit path must exist;
// without one, config.toml in ConfigDir is read if present.
// Flags bound to v before Load take precedence over everything else.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "read config %s", path)
		}
	} else if dir, err := ConfigDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "read config")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "decode config")
	}
	if err := cfg.resolvePaths(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that decode cleanly but make no sense.
func (c *Config) Validate() error {
	if _, err := document.ParseEncoding(c.Export.Format); err != nil {
		return cerrors.Wrap(cerrors.ErrCodeInvalidInput, err, "export.format")
	}
	if c.Cache.TTL < 0 {
		return cerrors.New(cerrors.ErrCodeInvalidInput, "cache.ttl must not be negative")
	}
	for i, r := range c.Policy.Rules {
		if strings.TrimSpace(r.When) == "" {
			return cerrors.New(cerrors.ErrCodeInvalidInput, "policy.rules[%d]: empty condition", i)
		}
	}
	return nil
}

// Encoding returns the configured export encoding.
func (c *Config) Encoding() document.Encoding {
	enc, _ := document.ParseEncoding(c.Export.Format)
	return enc
}

func (c *Config) resolvePaths() error {
	if c.Store == "" {
		p, err := DefaultStorePath()
		if err != nil {
			return cerrors.Wrap(cerrors.ErrCodeIO, err, "resolve store path")
		}
		c.Store = p
	}
	if c.Cache.Dir == "" {
		dir, err := CacheDir()
		if err != nil {
			// No home directory: run without a persistent cache.
			c.Cache.Enabled = false
			return nil
		}
		c.Cache.Dir = dir
	}
	return nil
}
