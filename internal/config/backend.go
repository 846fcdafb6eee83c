package config

import (
	"time"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

func GetBackendURL() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve backend URL from environment")
	value := GetEnvOrDefault("PHOEBE_BACKEND_URL", "http://localhost:8080")
	logger.Info(logger.CONFIG, "Backend URL resolved to %s", value)
	return value
}

func GetBackendToken() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve backend token from environment")
	value := GetEnvOrDefault("PHOEBE_TOKEN", "")
	if value == "" {
		logger.Info(logger.CONFIG, "No static backend token configured - login required")
	}
	return value
}

// GetBackendTimeout bounds non-streaming backend requests. The chat stream
// itself is not subject to this timeout.
func GetBackendTimeout() time.Duration {
	seconds := parseEnvInt("PHOEBE_BACKEND_TIMEOUT_SECONDS", 30)
	return time.Duration(seconds) * time.Second
}
