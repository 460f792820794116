package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facilityworks/sessionkit/core"
	"github.com/facilityworks/sessionkit/ports"
)

// redisOpTimeout bounds every store operation; the CredentialStore contract
// has no context parameter, so the bound lives here.
const redisOpTimeout = 2 * time.Second

// RedisStore is a CredentialStore backed by Redis, for deployments where
// several processes (kiosk windows, sidecar tools) share one session. Reads
// are best-effort: a Redis failure reads as "no credential" and is logged,
// never raised, because the backend stays authoritative on rejection.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStore creates a Redis-backed store and verifies connectivity.
func NewRedisStore(ctx context.Context, client *redis.Client, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "sessionkit:",
		logger: logger,
	}, nil
}

var _ ports.CredentialStore = (*RedisStore)(nil)

// Access returns the stored access credential, or "" when absent.
func (s *RedisStore) Access() string {
	return s.get(keyAccess)
}

// Refresh returns the stored renewal credential, or "" when absent.
func (s *RedisStore) Refresh() string {
	return s.get(keyRefresh)
}

// SetTokens replaces the credential pair in a single MSET so concurrent
// readers never observe a mixed pairing.
func (s *RedisStore) SetTokens(access, refresh string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	err := s.client.MSet(ctx,
		s.prefix+keyAccess, access,
		s.prefix+keyRefresh, refresh,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}
	return nil
}

// Profile returns the cached user profile, or nil when absent.
func (s *RedisStore) Profile() *core.UserProfile {
	raw := s.get(keyProfile)
	if raw == "" {
		return nil
	}

	var profile core.UserProfile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		return nil
	}
	return &profile
}

// SetProfile caches the user profile.
func (s *RedisStore) SetProfile(profile *core.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+keyProfile, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether both credentials are present.
func (s *RedisStore) IsAuthenticated() bool {
	return s.get(keyAccess) != "" && s.get(keyRefresh) != ""
}

// ClearAll removes every auth-looking key under the store prefix. Failures
// are logged and swallowed; the next ClearAll retries naturally.
func (s *RedisStore) ClearAll() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	var doomed []string
	for iter.Next(ctx) {
		key := iter.Val()
		if sweepKey(key[len(s.prefix):]) {
			doomed = append(doomed, key)
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("failed to scan session keys", slog.Any("error", err))
	}

	if len(doomed) == 0 {
		return
	}
	if err := s.client.Del(ctx, doomed...).Err(); err != nil {
		s.logger.Warn("failed to clear session keys", slog.Any("error", err))
	}
}

// Client exposes the underlying Redis client so the application can share the
// connection with the event bridge.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func (s *RedisStore) get(key string) string {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read session key",
				slog.String("key", key), slog.Any("error", err))
		}
		return ""
	}
	return value
}
