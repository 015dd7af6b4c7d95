// Package core wires memberkit together: configuration, the per-actor
// session registry and the runtime built from both.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is read from MEMBERKIT_* environment variables.
type Config struct {
	BackendURL     string `env:"MEMBERKIT_BACKEND_URL"`
	DatabaseURL    string `env:"MEMBERKIT_DATABASE_URL"`
	DatabaseSchema string `env:"MEMBERKIT_DATABASE_SCHEMA" envDefault:"memberkit"`
	RedisURL       string `env:"MEMBERKIT_REDIS_URL"`
	AutoMigrate    bool   `env:"MEMBERKIT_AUTO_MIGRATE"`

	SourceTimeout   time.Duration `env:"MEMBERKIT_SOURCE_TIMEOUT" envDefault:"10s"`
	ReferenceTTL    time.Duration `env:"MEMBERKIT_REFERENCE_TTL" envDefault:"5m"`
	ProfileCacheTTL time.Duration `env:"MEMBERKIT_PROFILE_CACHE_TTL" envDefault:"24h"`
	SessionIdleTTL  time.Duration `env:"MEMBERKIT_SESSION_IDLE_TTL" envDefault:"30m"`
	JanitorSchedule string        `env:"MEMBERKIT_JANITOR_SCHEDULE" envDefault:"@every 1m"`

	RefreshLimit  int           `env:"MEMBERKIT_REFRESH_LIMIT" envDefault:"10"`
	RefreshWindow time.Duration `env:"MEMBERKIT_REFRESH_WINDOW" envDefault:"1m"`

	TokenIssuer       string `env:"MEMBERKIT_TOKEN_ISSUER"`
	TokenAudience     string `env:"MEMBERKIT_TOKEN_AUDIENCE"`
	JWKSURL           string `env:"MEMBERKIT_JWKS_URL"`
	TokenPublicKeyPEM string `env:"MEMBERKIT_TOKEN_PUBLIC_KEY_PEM"`
	TokenKeyID        string `env:"MEMBERKIT_TOKEN_KEY_ID" envDefault:"default"`

	HTTPAddr string `env:"MEMBERKIT_HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"MEMBERKIT_LOG_LEVEL" envDefault:"info"`
}

// LoadConfigFromEnv parses the environment, after loading any of the given
// dotenv files that exist.
func LoadConfigFromEnv(dotenv ...string) (Config, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil {
			logrus.WithField("path", path).Debug("core: dotenv file not loaded")
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.defaults()
	return cfg, cfg.Validate()
}

func (c *Config) defaults() {
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 10 * time.Second
	}
	if c.ReferenceTTL <= 0 {
		c.ReferenceTTL = 5 * time.Minute
	}
	if c.ProfileCacheTTL <= 0 {
		c.ProfileCacheTTL = 24 * time.Hour
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = 30 * time.Minute
	}
	if strings.TrimSpace(c.JanitorSchedule) == "" {
		c.JanitorSchedule = "@every 1m"
	}
	if c.RefreshLimit <= 0 {
		c.RefreshLimit = 10
	}
	if c.RefreshWindow <= 0 {
		c.RefreshWindow = time.Minute
	}
	if strings.TrimSpace(c.DatabaseSchema) == "" {
		c.DatabaseSchema = "memberkit"
	}
}

// Validate checks that a source backend and a token verification method are
// configured.
func (c Config) Validate() error {
	var errs []error
	if c.BackendURL == "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("one of MEMBERKIT_BACKEND_URL or MEMBERKIT_DATABASE_URL is required"))
	}
	if c.JWKSURL == "" && c.TokenPublicKeyPEM == "" {
		errs = append(errs, errors.New("one of MEMBERKIT_JWKS_URL or MEMBERKIT_TOKEN_PUBLIC_KEY_PEM is required"))
	}
	return errors.Join(errs...)
}

// Logger builds the process logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
