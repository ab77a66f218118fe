package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the endpoints and client settings, read once at startup.
type Config struct {
	APIURL       string        `env:"API_URL" validate:"required,url"`
	WebSocketURL string        `env:"WEBSOCKET_URL" validate:"required,url"`
	LogLevel     string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFile      string        `env:"LOG_FILE"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" validate:"gte=0"`
	PongWait     time.Duration `env:"PONG_WAIT" validate:"gte=0"`
	Backfill     bool          `env:"BACKFILL"`
	Avatars      []string      `env:"AVATARS" envSeparator:","`
}

var validate = validator.New()

// LoadDotEnv loads the given .env files into the process environment
// without overriding variables that are already set. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv parses the process environment into a Config. The result is not
// validated yet so flags can still override it.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the assembled Config.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = zerolog.InfoLevel.String()
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the zerolog level named by LogLevel.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
