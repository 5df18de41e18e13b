// Package config carries the process-level settings of the console binary.
// Gateway and preference packages load their own sections; this one only
// covers the HTTP listener and the alarm subscription toggle.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ListenAddr    string `env:"ROBO_LISTEN_ADDR" envDefault:":9180"`
	PrefsPath     string `env:"ROBO_PREFS_PATH" envDefault:"data/prefs.db"`
	AlarmsEnabled bool   `env:"ROBO_ALARMS_ENABLED" envDefault:"true"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
