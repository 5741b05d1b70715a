// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Slot backends.
const (
	SlotMemory   = "memory"
	SlotFile     = "file"
	SlotRedis    = "redis"
	SlotPostgres = "postgres"
)

// Stock backends.
const (
	StockHTTP     = "http"
	StockPostgres = "postgres"
	StockMemory   = "memory"
)

// Config holds the settings of the cartflow API server.
type Config struct {
	HTTPAddr string
	TLSCert  string
	TLSKey   string
	LogLevel string

	SlotBackend string
	SlotDir     string
	SlotTTL     time.Duration

	DatabaseURL string
	RedisAddr   string

	StockBackend string
	StockAPIURL  string
	StockTimeout time.Duration
	StockSeed    string

	SessionTTL time.Duration
	// CartIdleTTL is how long an unused cart stays in memory.
	CartIdleTTL time.Duration

	OTELHost        string
	OTELProbability float64
}

// Load reads Config from the environment, falling back to defaults for
// unset or malformed values.
func Load() Config {
	return Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8443"),
		TLSCert:  getEnv("TLS_CERT", ""),
		TLSKey:   getEnv("TLS_KEY", ""),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SlotBackend: getEnv("SLOT_BACKEND", SlotMemory),
		SlotDir:     getEnv("SLOT_DIR", "data/carts"),
		SlotTTL:     getEnvDuration("SLOT_TTL", 0),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", ""),

		StockBackend: getEnv("STOCK_BACKEND", StockHTTP),
		StockAPIURL:  getEnv("STOCK_API_URL", "http://localhost:3333"),
		StockTimeout: getEnvDuration("STOCK_TIMEOUT", 5*time.Second),
		StockSeed:    getEnv("STOCK_SEED", ""),

		SessionTTL:  getEnvDuration("SESSION_TTL", time.Hour),
		CartIdleTTL: getEnvDuration("CART_IDLE_TTL", 30*time.Minute),

		OTELHost:        getEnv("OTEL_HOST", ""),
		OTELProbability: getEnvFloat("OTEL_PROBABILITY", 1.0),
	}
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.SlotBackend {
	case SlotMemory, SlotFile:
	case SlotRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("SLOT_BACKEND=redis requires REDIS_ADDR")
		}
	case SlotPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SLOT_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown SLOT_BACKEND %q", c.SlotBackend)
	}

	switch c.StockBackend {
	case StockHTTP:
		if c.StockAPIURL == "" {
			return fmt.Errorf("STOCK_BACKEND=http requires STOCK_API_URL")
		}
	case StockPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("STOCK_BACKEND=postgres requires DATABASE_URL")
		}
	case StockMemory:
	default:
		return fmt.Errorf("unknown STOCK_BACKEND %q", c.StockBackend)
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("TLS_CERT and TLS_KEY must be set together")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
