package config

import (
	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

func GetOpenAIKey() string {
	logger.Debug(logger.CONFIG, "Attempting to retrieve OpenAI key from environment")
	value := GetEnvOrDefault("OPENAI_KEY", "")
	if value == "" {
		logger.Warn(logger.CONFIG, "Failed to retrieve OpenAI key - environment variable not set")
	} else {
		logger.Info(logger.CONFIG, "OpenAI key successfully loaded")
	}
	return value
}

// GetTTSVoice selects the synthesis voice for spoken replies
func GetTTSVoice() string {
	return GetEnvOrDefault("TTS_VOICE", "nova")
}
