package config

import (
	"time"
)

// GetSilenceWindow is the fixed delay after the last recognition result
// before an utterance is considered finished and sent.
func GetSilenceWindow() time.Duration {
	ms := parseEnvInt("VOICE_SILENCE_MS", 1000)
	return time.Duration(ms) * time.Millisecond
}

// GetVoiceBackoff is the delay before listening restarts after a transient
// engine error or an empty assistant reply.
func GetVoiceBackoff() time.Duration {
	ms := parseEnvInt("VOICE_BACKOFF_MS", 250)
	return time.Duration(ms) * time.Millisecond
}
