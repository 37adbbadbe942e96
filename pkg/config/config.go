package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the top-level iconpulse configuration.
type Config struct {
	General GeneralConfig `toml:"general" yaml:"general"`
	Cache   CacheConfig   `toml:"cache" yaml:"cache"`
	Icon    IconConfig    `toml:"icon" yaml:"icon"`
	Warm    WarmConfig    `toml:"warm" yaml:"warm"`
}

// GeneralConfig holds global settings.
type GeneralConfig struct {
	// DataDir is the application data directory. The icon cache lives in
	// {DataDir}/cache/icons.
	DataDir string `toml:"data_dir" yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level" yaml:"log_level"`
}

// CacheConfig controls the icon cache.
type CacheConfig struct {
	// MemoryEntries bounds the in-memory tier. 0 disables it.
	MemoryEntries int `toml:"memory_entries" yaml:"memory_entries"`

	// Disabled skips the cache entirely; every lookup extracts.
	Disabled bool `toml:"disabled" yaml:"disabled"`
}

// IconConfig controls extraction.
type IconConfig struct {
	// ResourceSize is the edge length requested from resource containers.
	ResourceSize int `toml:"resource_size" yaml:"resource_size"`

	// MaxEdge caps the encoded icon's longest edge. 0 disables downscaling.
	MaxEdge int `toml:"max_edge" yaml:"max_edge"`
}

// WarmConfig controls bulk prefetching.
type WarmConfig struct {
	Workers int      `toml:"workers" yaml:"workers"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:  defaultDataDir(),
			LogLevel: "info",
		},
		Cache: CacheConfig{
			MemoryEntries: 256,
		},
		Icon: IconConfig{
			ResourceSize: 256,
			MaxEdge:      256,
		},
		Warm: WarmConfig{
			Workers: 4,
			Timeout: Duration{30 * time.Second},
		},
	}
}

// CacheDir returns the icon cache directory.
func (c *Config) CacheDir() string {
	return filepath.Join(c.General.DataDir, "cache", "icons")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.General.DataDir == "" {
		return fmt.Errorf("config: general.data_dir is empty")
	}
	if _, err := ParseLogLevel(c.General.LogLevel); err != nil {
		return err
	}
	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("config: cache.memory_entries must not be negative, got %d", c.Cache.MemoryEntries)
	}
	if c.Icon.ResourceSize < 0 {
		return fmt.Errorf("config: icon.resource_size must not be negative, got %d", c.Icon.ResourceSize)
	}
	if c.Icon.MaxEdge < 0 {
		return fmt.Errorf("config: icon.max_edge must not be negative, got %d", c.Icon.MaxEdge)
	}
	if c.Warm.Workers < 0 {
		return fmt.Errorf("config: warm.workers must not be negative, got %d", c.Warm.Workers)
	}
	return nil
}

// ParseLogLevel maps a config log level to a slog.Level. Matching is
// case-insensitive; "warning" is accepted for warn.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q", s)
	}
}

// defaultDataDir returns the per-user config directory, falling back to
// ~/.config when the platform reports none.
func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}
