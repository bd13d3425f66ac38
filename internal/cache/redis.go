package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_jewelry/internal/session"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{
		client:    client,
		baseTTL:   15 * time.Minute,
		maxJitter: 5 * time.Minute,
	}
}

type RedisCache struct {
	client    redis.UniversalClient
	baseTTL   time.Duration
	maxJitter time.Duration
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) ([]byte, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set stores payload with the base TTL plus random jitter so entries
// written together do not expire together.
func (r *RedisCache) Set(ctx context.Context, sessionID string, payload []byte) error {
	ttl := r.baseTTL
	if r.maxJitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(r.maxJitter)))
	}
	if err := r.client.Set(ctx, cacheKey(sessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(sessionID string) string {
	return session.Key(sessionID)
}

var _ SnapshotCache = (*RedisCache)(nil)
