package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/phoebe-ai/phoebe-client/internal/config"
	"github.com/phoebe-ai/phoebe-client/internal/infrastructure/backend"
)

type Service struct {
	client *redis.Client
}

// NewService returns nil when Redis is not configured or unreachable; the
// session service then fetches records from the backend on every access.
func NewService() *Service {
	url := config.GetRedisURL()

	if url == "" {
		log.Warn().Msg("Redis URL not configured - session cache will be unavailable")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: config.GetRedisPassword(),
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", url).
			Msg("Failed to establish Redis connection")
		return nil
	}

	return &Service{
		client: client,
	}
}

// Set stores a value in Redis with an optional expiration
func (s *Service) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := s.client.Set(ctx, key, value, expiration).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("expiration", expiration).
			Msg("Critical Redis SET operation failed")
		return err
	}
	return nil
}

// Get retrieves a value from Redis
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Critical Redis GET operation failed")
		return "", err
	}
	return val, err
}

// Delete removes a key from Redis
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}

func sessionKey(sessionID string) string {
	return "session:" + sessionID
}

// CacheSession stores a session record as JSON under the configured TTL.
// Cache failures are logged and swallowed: the backend copy is the truth.
func (s *Service) CacheSession(ctx context.Context, record backend.SessionRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("session_id", record.SessionID).Msg("Failed to marshal session for cache")
		return
	}
	_ = s.Set(ctx, sessionKey(record.SessionID), raw, config.GetSessionCacheTTL())
}

// CachedSession returns the cached record, or nil on miss or decode failure.
func (s *Service) CachedSession(ctx context.Context, sessionID string) *backend.SessionRecord {
	raw, err := s.Get(ctx, sessionKey(sessionID))
	if err != nil || raw == "" {
		return nil
	}

	var record backend.SessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Discarding corrupt cached session")
		_ = s.Delete(ctx, sessionKey(sessionID))
		return nil
	}
	return &record
}

// EvictSession drops the cached copy after a rename or delete.
func (s *Service) EvictSession(ctx context.Context, sessionID string) {
	_ = s.Delete(ctx, sessionKey(sessionID))
}
