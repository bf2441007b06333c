// Package config loads the service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full service configuration.
type Config struct {
	Port int

	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	UseMemoryCache bool
	CacheTTL       time.Duration

	Aggregator struct {
		Interval       time.Duration
		SourceTimeout  time.Duration
		MaxConcurrency int
	}

	Broadcast struct {
		Interval          time.Duration
		SweepInterval     time.Duration
		PriceThresholdPct float64
		VolumeSpikeFactor float64
	}

	Sources struct {
		DexScreenerURL   string
		DexScreenerQuery string
		JupiterURL       string
		JupiterQuery     string
	}

	AdminKey string
	LogFile  string
	LogLevel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Port = getEnvAsIntOrDefault("PORT", 8080)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvAsIntOrDefault("REDIS_DB", 0)
	cfg.UseMemoryCache = getEnvAsBoolOrDefault("USE_MEMORY_CACHE", false)
	cfg.CacheTTL = time.Duration(getEnvAsIntOrDefault("CACHE_TTL_SECONDS", 30)) * time.Second

	cfg.Aggregator.Interval = time.Duration(getEnvAsIntOrDefault("AGGREGATOR_INTERVAL_SECONDS", 20)) * time.Second
	cfg.Aggregator.SourceTimeout = time.Duration(getEnvAsIntOrDefault("SOURCE_TIMEOUT_SECONDS", 10)) * time.Second
	cfg.Aggregator.MaxConcurrency = getEnvAsIntOrDefault("SOURCE_MAX_CONCURRENCY", 10)

	cfg.Broadcast.Interval = time.Duration(getEnvAsIntOrDefault("BROADCAST_INTERVAL_SECONDS", 3)) * time.Second
	cfg.Broadcast.SweepInterval = time.Duration(getEnvAsIntOrDefault("ROOM_SWEEP_INTERVAL_SECONDS", 60)) * time.Second
	cfg.Broadcast.PriceThresholdPct = getEnvAsFloatOrDefault("PRICE_CHANGE_THRESHOLD_PCT", 0.5)
	cfg.Broadcast.VolumeSpikeFactor = getEnvAsFloatOrDefault("VOLUME_SPIKE_FACTOR", 2.0)

	cfg.Sources.DexScreenerURL = os.Getenv("DEXSCREENER_URL")
	cfg.Sources.DexScreenerQuery = getEnvOrDefault("DEXSCREENER_QUERY", "sol")
	cfg.Sources.JupiterURL = os.Getenv("JUPITER_URL")
	cfg.Sources.JupiterQuery = getEnvOrDefault("JUPITER_QUERY", "SOL")

	cfg.AdminKey = os.Getenv("ADMIN_KEY")
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
