package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const insecureDefaultSecret = "dev-session-secret"

type Config struct {
	Addr           string        `yaml:"addr"`
	APITimeout     time.Duration `yaml:"timeout"`
	DatabasePath   string        `yaml:"database_path"`
	MigrateOnStart bool          `yaml:"migrate_on_start"`
	// CatalogPath points at a project template YAML file. Empty uses the embedded seed.
	CatalogPath string        `yaml:"catalog_path"`
	Session     SessionConfig `yaml:"session"`
	Store       StoreConfig   `yaml:"store"`
	LogLevel    string        `yaml:"log_level"`
}

type SessionConfig struct {
	Header string `yaml:"header"`
	Cookie string `yaml:"cookie"`
	// JWTSecret enables signed session tokens. Leave empty to accept only the header
	// and cookie.
	JWTSecret string `yaml:"jwt_secret"`
}

type StoreConfig struct {
	TxAttempts           int `yaml:"tx_attempts"`
	RecomputeConcurrency int `yaml:"recompute_concurrency"`
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:           getEnv("PREP_ADDR", ":8080"),
		APITimeout:     15 * time.Second,
		DatabasePath:   getEnv("PREP_DATABASE_PATH", "preptrack.db"),
		MigrateOnStart: true,
		CatalogPath:    getEnv("PREP_CATALOG_PATH", ""),
		Session: SessionConfig{
			Header:    "X-Session-ID",
			Cookie:    "prep_session",
			JWTSecret: getEnv("PREP_SESSION_SECRET", ""),
		},
		Store: StoreConfig{
			TxAttempts:           5,
			RecomputeConcurrency: 4,
		},
		LogLevel: "info",
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate fills zero values with defaults and rejects settings the server cannot run
// with. Outside PREP_ENV=development a configured session secret must not be the
// well-known development value or shorter than 16 bytes.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.APITimeout)
	}

	if c.Session.Header == "" {
		c.Session.Header = "X-Session-ID"
	}
	if c.Session.Cookie == "" {
		c.Session.Cookie = "prep_session"
	}
	if c.Store.TxAttempts == 0 {
		c.Store.TxAttempts = 5
	}
	if c.Store.TxAttempts < 1 {
		return fmt.Errorf("store.tx_attempts must be >= 1, got %d", c.Store.TxAttempts)
	}
	if c.Store.RecomputeConcurrency == 0 {
		c.Store.RecomputeConcurrency = 4
	}
	if c.Store.RecomputeConcurrency < 1 {
		return fmt.Errorf("store.recompute_concurrency must be >= 1, got %d", c.Store.RecomputeConcurrency)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if secret := c.Session.JWTSecret; secret != "" && !IsDevelopment() {
		if secret == insecureDefaultSecret || len(secret) < 16 {
			return errors.New("session.jwt_secret is insecure; set PREP_SESSION_SECRET to a random value of at least 16 bytes")
		}
	}

	return nil
}

// IsDevelopment reports whether PREP_ENV selects the development environment.
func IsDevelopment() bool {
	return strings.EqualFold(os.Getenv("PREP_ENV"), "development")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
