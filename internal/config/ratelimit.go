package config

import (
	"time"

	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

type RateLimitConfig struct {
	Enabled bool
	MaxHits int
	Window  time.Duration
}

func GetRateLimitConfig(key string) RateLimitConfig {
	enabled := GetEnvOrDefault("RATELIMIT_ENABLED", "false") == "true"

	configs := map[string]RateLimitConfig{
		"chat_send": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_CHAT_SEND", 60), // 60 sends per minute
			Window:  time.Minute,
		},
		"session_mutation": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_SESSION_MUTATION", 120), // 120 requests per minute
			Window:  time.Minute,
		},
		"notes_export": {
			Enabled: enabled,
			MaxHits: parseEnvInt("RATELIMIT_NOTES_EXPORT", 30), // 30 exports per minute
			Window:  time.Minute,
		},
	}

	if config, exists := configs[key]; exists {
		return config
	}

	logger.Warn(logger.CONFIG, "No rate limit config found for key: %s", key)
	return RateLimitConfig{Enabled: false}
}
