package main

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type config struct {
	DataDir  string   `env:"STATEMAP_DATA_DIR" envDefault:".statemap"`
	Domain   string   `env:"STATEMAP_DOMAIN" envDefault:"records"`
	Keys     []string `env:"STATEMAP_KEYS" envSeparator:"," envDefault:"id"`
	LogLevel string   `env:"STATEMAP_LOG_LEVEL" envDefault:"warn"`
	Format   string   `env:"STATEMAP_FORMAT" envDefault:"json"`
	Actor    string   `env:"STATEMAP_ACTOR"`
	// ActivityVerbs limits which commit events are logged.
	ActivityVerbs []string `env:"STATEMAP_ACTIVITY_VERBS" envSeparator:","`
}

// loadConfig reads defaults from the environment; flags override them.
func loadConfig() (config, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
