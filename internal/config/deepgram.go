package config

import (
	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

func GetDeepgramAPIKey() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve Deepgram API key from environment")
	value := GetEnvOrDefault("DEEPGRAM_API_KEY", "")
	if value == "" {
		logger.Warn(logger.CONFIG, "Failed to retrieve Deepgram API key - environment variable not set")
	} else {
		logger.Info(logger.CONFIG, "Deepgram API key successfully loaded")
	}
	return value
}

func GetDeepgramSocketURL() string {
	return GetEnvOrDefault("DEEPGRAM_SOCKET_URL", "wss://api.deepgram.com")
}
