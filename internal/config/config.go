// Package config loads bot settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`

	// GuildIDs are the guilds whose command scopes the bot syncs on ready.
	GuildIDs []string `env:"GUILD_IDS" envSeparator:","`
	// SyncGlobal also syncs the global scope.
	SyncGlobal       bool `env:"SYNC_GLOBAL" envDefault:"true"`
	FallbackToGlobal bool `env:"FALLBACK_TO_GLOBAL" envDefault:"false"`
	SyncWorkers      int  `env:"SYNC_WORKERS" envDefault:"4"`

	// LocalesDir holds YAML translation catalogs; empty disables translation.
	LocalesDir string `env:"LOCALES_DIR"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads files (".env" when none are given) into the process
// environment and parses it. Missing files are not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the current environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SyncWorkers < 1 {
		cfg.SyncWorkers = 1
	}
	return &cfg, nil
}
