// Package config loads corestore's runtime settings via viper: pool
// capacity, data directory, WAL enablement, and log level.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the unmarshaled shape of a corestore YAML config file.
type Config struct {
	Pool struct {
		Capacity int    `mapstructure:"capacity"`
		Replacer string `mapstructure:"replacer"` // "lru" or "clock"
	} `mapstructure:"pool"`

	Storage struct {
		DataDir  string `mapstructure:"data_dir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	WAL struct {
		Enabled bool   `mapstructure:"enabled"`
		Dir     string `mapstructure:"dir"`
	} `mapstructure:"wal"`

	Tree struct {
		LeafMaxSize     int32 `mapstructure:"leaf_max_size"`
		InternalMaxSize int32 `mapstructure:"internal_max_size"`
	} `mapstructure:"tree"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Default returns the configuration corestore runs with when no file is
// supplied: a modest in-memory-sized pool, WAL off, info logging.
func Default() *Config {
	var cfg Config
	cfg.Pool.Capacity = 64
	cfg.Pool.Replacer = "lru"
	cfg.Storage.DataDir = "./data"
	cfg.Storage.PageSize = 4096
	cfg.WAL.Enabled = false
	cfg.WAL.Dir = "./data/wal"
	cfg.Tree.LeafMaxSize = 64
	cfg.Tree.InternalMaxSize = 64
	cfg.Log.Level = "info"
	return &cfg
}

// Load reads a YAML config file at path, falling back to Default() for any
// field the file doesn't set.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("pool.capacity", cfg.Pool.Capacity)
	v.SetDefault("pool.replacer", cfg.Pool.Replacer)
	v.SetDefault("storage.data_dir", cfg.Storage.DataDir)
	v.SetDefault("storage.page_size", cfg.Storage.PageSize)
	v.SetDefault("wal.enabled", cfg.WAL.Enabled)
	v.SetDefault("wal.dir", cfg.WAL.Dir)
	v.SetDefault("tree.leaf_max_size", cfg.Tree.LeafMaxSize)
	v.SetDefault("tree.internal_max_size", cfg.Tree.InternalMaxSize)
	v.SetDefault("log.level", cfg.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return cfg, nil
}
