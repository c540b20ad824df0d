package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DevMode bool

	// Database
	DatabasePath string

	// Broker credentials, optional: an agent's owning user may not have
	// connected a brokerage account yet, in which case the executor still
	// runs position sync for circuit-breaker liquidations but skips order
	// submission.
	BrokerAPIKey    string
	BrokerAPISecret string

	// Macro Risk Overlay knobs, §6.
	MacroOverlayEnabled    bool
	MacroOverlayMinSignals int
	MacroOverlayMinScale   float64
	MacroOverlayMaxScale   float64

	// Sentiment sub-weights consumed by the (out-of-scope) fetchers when
	// blending news/social/velocity into the combined score.
	SentimentWeightNews     float64
	SentimentWeightSocial   float64
	SentimentWeightVelocity float64

	// Fetcher rate limits and batch sizes, consumed by the (out-of-scope)
	// market-data/sentiment/macro-data fetchers.
	FetcherRateLimitPerMinute int
	FetcherBatchSize          int

	// Scheduling, cron expressions consumed by cmd/server.
	NightlyPipelineCron string
	IntradayMonitorCron string

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables, optionally populated
// from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DatabasePath: getEnv("DATABASE_PATH", "./data/agentfund.db"),

		BrokerAPIKey:    getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret: getEnv("BROKER_API_SECRET", ""),

		MacroOverlayEnabled:    getEnvAsBool("MACRO_OVERLAY_ENABLED", true),
		MacroOverlayMinSignals: getEnvAsInt("MACRO_OVERLAY_MIN_SIGNALS", 2),
		MacroOverlayMinScale:   getEnvAsFloat("MACRO_OVERLAY_MIN_SCALE", 0.25),
		MacroOverlayMaxScale:   getEnvAsFloat("MACRO_OVERLAY_MAX_SCALE", 1.25),

		SentimentWeightNews:     getEnvAsFloat("SENTIMENT_WEIGHT_NEWS", 0.5),
		SentimentWeightSocial:   getEnvAsFloat("SENTIMENT_WEIGHT_SOCIAL", 0.3),
		SentimentWeightVelocity: getEnvAsFloat("SENTIMENT_WEIGHT_VELOCITY", 0.2),

		FetcherRateLimitPerMinute: getEnvAsInt("FETCHER_RATE_LIMIT_PER_MINUTE", 60),
		FetcherBatchSize:          getEnvAsInt("FETCHER_BATCH_SIZE", 50),

		NightlyPipelineCron: getEnv("NIGHTLY_PIPELINE_CRON", "0 0 22 * * 1-5"),
		IntradayMonitorCron: getEnv("INTRADAY_MONITOR_CRON", "0 */5 13-20 * * 1-5"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MacroOverlayMinSignals < 1 {
		return fmt.Errorf("MACRO_OVERLAY_MIN_SIGNALS must be >= 1")
	}
	if c.MacroOverlayMinScale <= 0 || c.MacroOverlayMaxScale <= 0 || c.MacroOverlayMinScale > c.MacroOverlayMaxScale {
		return fmt.Errorf("MACRO_OVERLAY_MIN_SCALE/MAX_SCALE must be positive and min <= max")
	}

	// Broker credentials are optional: agents whose owning user hasn't
	// connected a brokerage account still run through the pipeline and the
	// executor's position-sync path, just without order submission.

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
