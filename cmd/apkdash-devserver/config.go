package main

import (
	"github.com/caarlos0/env/v11"
)

// config holds the devserver configuration.
type config struct {
	Host string `env:"APKDASH_DEVSERVER_HOST"` // default: "127.0.0.1"
	Port int    `env:"APKDASH_DEVSERVER_PORT"` // default: 3000
}

// parseConfig parses the configuration from the environment variables.
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

func (c *config) host() string {
	h := c.Host
	if h == "" {
		h = "127.0.0.1"
	}
	return h
}

func (c *config) port() int {
	p := c.Port
	if p == 0 {
		p = 3000
	}
	return p
}
