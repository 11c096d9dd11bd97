package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultAppName       = "Carworth"
	defaultAppEnv        = "development"
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultShutdownDelay = 10 * time.Second
	defaultSessionTTL    = 24 * time.Hour
	defaultHashTimeout   = 5 * time.Second
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	SessionSecret  string
	SessionTTL     time.Duration
	HashTimeout    time.Duration
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:       getEnv("APP_NAME", defaultAppName),
		AppEnv:        getEnv("APP_ENV", defaultAppEnv),
		Port:          getEnv("PORT", defaultPort),
		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.HashTimeout, err = getDuration("HASH_TIMEOUT", defaultHashTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}
	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("SESSION_SECRET must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
