// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr  string `env:"WDS_ADDR" envDefault:":8080"`
	Title string `env:"WDS_TITLE" envDefault:"War Drafting Simulator"`
	Owner string `env:"WDS_OWNER"`
	Debug bool   `env:"WDS_DEBUG"`

	// Empty password disables authentication.
	Password string `env:"WDS_PASSWORD"`

	// Both must be set to serve TLS; missing files abort startup.
	TLSCert string `env:"WDS_TLS_CERT"`
	TLSKey  string `env:"WDS_TLS_KEY"`

	CardsPath  string `env:"WDS_CARDS_PATH" envDefault:"config/characters.json"`
	PromptPath string `env:"WDS_PROMPT_PATH" envDefault:"config/prompt.txt"`

	GenBaseURL string `env:"WDS_GEN_BASE_URL"`
	GenAPIKey  string `env:"WDS_GEN_API_KEY"`
	GenModel   string `env:"WDS_GEN_MODEL" envDefault:"gpt-4o-mini"`

	HeartbeatInterval time.Duration `env:"WDS_HEARTBEAT_INTERVAL" envDefault:"2s"`
	HeartbeatTimeout  time.Duration `env:"WDS_HEARTBEAT_TIMEOUT" envDefault:"5s"`
	ReconnectGrace    time.Duration `env:"WDS_RECONNECT_GRACE" envDefault:"60s"`
}

// Load reads .env when present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load() // absent .env is fine

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// TLS reports whether TLS material is configured.
func (c Config) TLS() bool { return c.TLSCert != "" && c.TLSKey != "" }
