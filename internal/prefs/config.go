package prefs

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Path string `json:"path"`

	MaxOpenConns int `json:"max_open_conns"`
	MaxIdleConns int `json:"max_idle_conns"`

	BusyTimeout time.Duration `json:"-"`
}

func DefaultConfig() Config {
	return Config{
		Path:         filepath.Join("data", "prefs.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 4,
		BusyTimeout:  5 * time.Second,
	}
}

func (c Config) Merge(override Config) Config {
	result := c
	if trimmed := strings.TrimSpace(override.Path); trimmed != "" {
		result.Path = trimmed
	}
	if override.MaxOpenConns > 0 {
		result.MaxOpenConns = override.MaxOpenConns
	}
	if override.MaxIdleConns > 0 {
		result.MaxIdleConns = override.MaxIdleConns
	}
	if override.BusyTimeout > 0 {
		result.BusyTimeout = override.BusyTimeout
	}
	return result
}

// LoadConfig reads overrides from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if path := strings.TrimSpace(os.Getenv("ROBO_PREFS_PATH")); path != "" {
		cfg.Path = path
	}
	if conns := strings.TrimSpace(os.Getenv("ROBO_PREFS_MAX_OPEN_CONNS")); conns != "" {
		value, err := strconv.Atoi(conns)
		if err != nil {
			return Config{}, err
		}
		cfg.MaxOpenConns = value
	}
	if busy := strings.TrimSpace(os.Getenv("ROBO_PREFS_BUSY_TIMEOUT")); busy != "" {
		parsed, err := time.ParseDuration(busy)
		if err != nil {
			return Config{}, err
		}
		cfg.BusyTimeout = parsed
	}
	return DefaultConfig().Merge(cfg), nil
}
