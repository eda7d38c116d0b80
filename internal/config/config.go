// Package config loads tallyd settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

type Config struct {
	Env         string // local or prod
	Port        string
	StoreDriver string
	SQLiteDSN   string
	RedisAddr   string
	CounterName string // counter shown at "/"
	LogLevel    string
	LogFormat   string // json or console
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Load reads the configuration for the environment named by CONFIG_ENV.
// In the local environment a .env.local file is loaded first when present.
func Load() (*Config, error) {
	env := strings.ToLower(os.Getenv("CONFIG_ENV"))
	if env == "" {
		env = "local"
	}

	if env == "local" {
		// Missing file is fine, the process environment still applies.
		_ = godotenv.Load(".env.local")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("SQLITE_DSN", "tally.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("COUNTER_NAME", "main")
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		Env:         env,
		Port:        v.GetString("PORT"),
		StoreDriver: strings.ToLower(v.GetString("STORE_DRIVER")),
		SQLiteDSN:   v.GetString("SQLITE_DSN"),
		RedisAddr:   v.GetString("REDIS_ADDR"),
		CounterName: v.GetString("COUNTER_NAME"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	switch cfg.Env {
	case "local":
		if cfg.LogFormat == "" {
			cfg.LogFormat = "console"
		}
	case "prod":
		if cfg.LogFormat == "" {
			cfg.LogFormat = "json"
		}
	default:
		return nil, fmt.Errorf("config: unknown CONFIG_ENV %q", cfg.Env)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverSQLite:
		if c.SQLiteDSN == "" {
			return fmt.Errorf("config: SQLITE_DSN must be set for the sqlite driver")
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config: REDIS_ADDR must be set for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}

	if c.CounterName == "" {
		return fmt.Errorf("config: COUNTER_NAME must not be empty")
	}
	return nil
}
