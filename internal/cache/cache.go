package cache

import (
	"context"
	"errors"
)

// SnapshotCache holds encoded session snapshots in front of the repository.
type SnapshotCache interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, payload []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheUnavailable is returned for writes the cache refused without
	// trying, e.g. while a breaker is open.
	ErrCacheUnavailable = errors.New("cache unavailable")
)

// NopCache is used when no Redis is configured. Every read misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }
func (NopCache) Set(context.Context, string, []byte) error   { return nil }
func (NopCache) Delete(context.Context, string) error        { return nil }
