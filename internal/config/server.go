package config

import (
	"github.com/phoebe-ai/phoebe-client/internal/logger"
)

// GetListenAddr is the bind address of the local UI-facing API.
// Defaults to loopback only - the daemon is not meant to be reachable
// from other hosts.
func GetListenAddr() string {
	value := GetEnvOrDefault("LISTEN_ADDR", "127.0.0.1:7800")
	logger.Info(logger.CONFIG, "Local API listen address resolved to %s", value)
	return value
}
