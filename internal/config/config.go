package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port              string        `env:"PORT" envDefault:"8080"`
	TurnTimeout       time.Duration `env:"TURN_TIMEOUT" envDefault:"30s"`
	DefaultMaxRerolls int           `env:"DEFAULT_MAX_REROLLS" envDefault:"3"`
	MaxRerollsLimit   int           `env:"MAX_REROLLS_LIMIT" envDefault:"10"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	DatabaseURL       string        `env:"DATABASE_URL"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	Dev               bool          `env:"DEV" envDefault:"false"`
	ShutdownGrace     time.Duration `env:"SHUTDOWN_GRACE" envDefault:"10s"`
}

// Load reads files (default ".env") into the environment, then parses it.
// Missing files are ignored; variables already set win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.TurnTimeout <= 0:
		return fmt.Errorf("TURN_TIMEOUT must be positive, got %s", c.TurnTimeout)
	case c.MaxRerollsLimit < 1:
		return fmt.Errorf("MAX_REROLLS_LIMIT must be at least 1, got %d", c.MaxRerollsLimit)
	case c.DefaultMaxRerolls < 1 || c.DefaultMaxRerolls > c.MaxRerollsLimit:
		return fmt.Errorf("DEFAULT_MAX_REROLLS must be within 1..%d, got %d", c.MaxRerollsLimit, c.DefaultMaxRerolls)
	}
	return nil
}

func (c Config) Addr() string { return ":" + c.Port }
