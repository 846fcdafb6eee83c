package config

import (
	"time"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

func GetRedisURL() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve Redis URL from environment")
	value := GetEnvOrDefault("REDIS_URL", "")
	if value == "" {
		logger.Warn(logger.CONFIG, "Failed to retrieve Redis URL - environment variable not set")
	} else {
		logger.Info(logger.CONFIG, "Redis URL successfully loaded")
	}
	return value
}

func GetRedisPassword() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve Redis password from environment")
	value := GetEnvOrDefault("REDIS_PASSWORD", "")
	if value == "" {
		logger.Warn(logger.CONFIG, "Failed to retrieve Redis password - environment variable not set")
	}
	return value
}

// GetSessionCacheTTL bounds how long cached session records are trusted
// before the backend is consulted again.
func GetSessionCacheTTL() time.Duration {
	minutes := parseEnvInt("SESSION_CACHE_TTL_MINUTES", 5)
	return time.Duration(minutes) * time.Minute
}
