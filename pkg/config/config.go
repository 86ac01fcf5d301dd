// Package config loads process configuration for the ledger service:
// database connection settings, the key-sealing secret, chain
// tunables, and server bind addresses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the ledger service.
type Config struct {
	// Key-sealing secret (§4.1): combined with a user ID to derive the
	// AES-256-GCM key that encrypts private keys at rest.
	KeySealSecret string

	// Database connection settings, consumed by pkg/database.Client.
	DatabaseURL         string
	DatabaseMaxConns    int
	DatabaseMinConns    int
	DatabaseMaxIdleTime int // seconds
	DatabaseMaxLifetime int // seconds

	// Server bind addresses.
	HealthAddr  string
	MetricsAddr string
	LogLevel    string

	// Chain tunables, mirrored into chain.Config at wiring time (§4.6).
	BlockSize         int
	InitialDifficulty int
	TargetBlockTime   time.Duration
	AdjustEvery       int
	RateWindow        time.Duration
	RateMax           int

	// HealthCheckInterval is how often the integrity supervisor runs
	// its reload-and-compare loop (§4.7 Integrity loop).
	HealthCheckInterval time.Duration

	// StrictReloadVerification, when true, recomputes every loaded
	// block and transaction hash and re-verifies every transaction
	// signature on reload rather than trusting the stored hashes
	// (Open Question: reload trust
	// model). Off by default, matching the documented trust
	// assumption that the durable store is the source of truth.
	StrictReloadVerification bool
}

// Default returns the baseline configuration used when no environment
// variables or override file are present.
func Default() *Config {
	return &Config{
		KeySealSecret: "",

		DatabaseURL:         "",
		DatabaseMaxConns:    25,
		DatabaseMinConns:    5,
		DatabaseMaxIdleTime: 300,
		DatabaseMaxLifetime: 3600,

		HealthAddr:  "0.0.0.0:8081",
		MetricsAddr: "0.0.0.0:9090",
		LogLevel:    "info",

		BlockSize:         5000,
		InitialDifficulty: 2,
		TargetBlockTime:   10 * time.Second,
		AdjustEvery:       10,
		RateWindow:        60 * time.Second,
		RateMax:           100,

		HealthCheckInterval:      5 * time.Minute,
		StrictReloadVerification: false,
	}
}

// Load reads configuration from environment variables, then applies a
// YAML override file named by CONFIG_FILE if set. Call Validate()
// afterward before starting the service.
func Load() (*Config, error) {
	cfg := Default()

	cfg.KeySealSecret = getEnv("KEY_SEAL_SECRET", cfg.KeySealSecret)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseMaxConns = getEnvInt("DATABASE_MAX_CONNS", cfg.DatabaseMaxConns)
	cfg.DatabaseMinConns = getEnvInt("DATABASE_MIN_CONNS", cfg.DatabaseMinConns)
	cfg.DatabaseMaxIdleTime = getEnvInt("DATABASE_MAX_IDLE_TIME", cfg.DatabaseMaxIdleTime)
	cfg.DatabaseMaxLifetime = getEnvInt("DATABASE_MAX_LIFETIME", cfg.DatabaseMaxLifetime)

	cfg.HealthAddr = getEnv("HEALTH_ADDR", cfg.HealthAddr)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.BlockSize = getEnvInt("BLOCK_SIZE", cfg.BlockSize)
	cfg.InitialDifficulty = getEnvInt("INITIAL_DIFFICULTY", cfg.InitialDifficulty)
	cfg.TargetBlockTime = getEnvDuration("TARGET_BLOCK_TIME", cfg.TargetBlockTime)
	cfg.AdjustEvery = getEnvInt("ADJUST_EVERY", cfg.AdjustEvery)
	cfg.RateWindow = getEnvDuration("RATE_WINDOW", cfg.RateWindow)
	cfg.RateMax = getEnvInt("RATE_MAX", cfg.RateMax)

	cfg.HealthCheckInterval = getEnvDuration("HEALTH_CHECK_INTERVAL", cfg.HealthCheckInterval)
	cfg.StrictReloadVerification = getEnvBool("STRICT_RELOAD_VERIFICATION", cfg.StrictReloadVerification)

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyOverrideFile(path); err != nil {
			return nil, fmt.Errorf("apply config override %s: %w", path, err)
		}
	}

	return cfg, nil
}

// override mirrors the subset of Config an operator may want to pin
// in a checked-in file rather than via environment variables. Only
// fields present in the file are applied; the rest keep their
// env-derived values.
type override struct {
	KeySealSecret     *string        `yaml:"key_seal_secret"`
	DatabaseURL       *string        `yaml:"database_url"`
	HealthAddr        *string        `yaml:"health_addr"`
	MetricsAddr       *string        `yaml:"metrics_addr"`
	LogLevel          *string        `yaml:"log_level"`
	BlockSize         *int           `yaml:"block_size"`
	InitialDifficulty *int           `yaml:"initial_difficulty"`
	AdjustEvery       *int           `yaml:"adjust_every"`
	RateMax           *int           `yaml:"rate_max"`
}

func (c *Config) applyOverrideFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read override file: %w", err)
	}

	var o override
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse override file: %w", err)
	}

	if o.KeySealSecret != nil {
		c.KeySealSecret = *o.KeySealSecret
	}
	if o.DatabaseURL != nil {
		c.DatabaseURL = *o.DatabaseURL
	}
	if o.HealthAddr != nil {
		c.HealthAddr = *o.HealthAddr
	}
	if o.MetricsAddr != nil {
		c.MetricsAddr = *o.MetricsAddr
	}
	if o.LogLevel != nil {
		c.LogLevel = *o.LogLevel
	}
	if o.BlockSize != nil {
		c.BlockSize = *o.BlockSize
	}
	if o.InitialDifficulty != nil {
		c.InitialDifficulty = *o.InitialDifficulty
	}
	if o.AdjustEvery != nil {
		c.AdjustEvery = *o.AdjustEvery
	}
	if o.RateMax != nil {
		c.RateMax = *o.RateMax
	}
	return nil
}

// Validate checks that all required configuration is present and
// secure. Call after Load() before starting the service.
func (c *Config) Validate() error {
	var errs []string

	if c.KeySealSecret == "" {
		errs = append(errs, "KEY_SEAL_SECRET is required but not set")
	} else if len(c.KeySealSecret) < 32 {
		errs = append(errs, "KEY_SEAL_SECRET must be at least 32 characters")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required but not set")
	}
	if c.BlockSize <= 0 {
		errs = append(errs, "BLOCK_SIZE must be positive")
	}
	if c.InitialDifficulty < 0 {
		errs = append(errs, "INITIAL_DIFFICULTY cannot be negative")
	}
	if c.AdjustEvery <= 0 {
		errs = append(errs, "ADJUST_EVERY must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
