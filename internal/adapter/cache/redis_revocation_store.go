package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallbiznis/valora-identity/internal/repository"
)

const revokedKeyPrefix = "identity:revoked:"

// RedisRevocationStore implements RevocationStore backed by Redis.
type RedisRevocationStore struct {
	client redis.UniversalClient
}

var _ repository.RevocationStore = (*RedisRevocationStore)(nil)

// NewRedisRevocationStore constructs a Redis-backed revocation store.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// Revoke stores the token id until the token would have expired anyway.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if tokenID == "" {
		return fmt.Errorf("revoke token: empty token id")
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+tokenID, time.Now().UTC().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("persist revocation: %w", err)
	}
	return nil
}

// IsRevoked reports whether the token id is on the denylist.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("load revocation: %w", err)
	}
}
