package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// config holds the client configuration.
type config struct {
	ServerURL string `env:"APKDASH_SERVER_URL"` // default: "http://127.0.0.1:3000"
	DataDir   string `env:"APKDASH_DATA_DIR"`   // default: "~/.apkdash"
	LogLevel  string `env:"APKDASH_LOG_LEVEL"`  // default: "info"
}

// parseConfig parses the client configuration from the environment
// variables.
func parseConfig(environ []string) (*config, error) {
	var cfg config

	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *config) serverURL() string {
	u := c.ServerURL
	if u == "" {
		u = "http://127.0.0.1:3000"
	}
	return u
}

func (c *config) databasePath() (string, error) {
	dir := c.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".apkdash")
	}
	return filepath.Join(dir, "apkdash.db"), nil
}

func (c *config) logLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
