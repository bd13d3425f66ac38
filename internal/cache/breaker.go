package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_jewelry/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerCache guards another cache with a circuit breaker. Misses do not
// count as failures. An open breaker reports a miss on Get and rejects Set
// with ErrCacheUnavailable. Delete always reaches the inner cache so that
// invalidations are not dropped while the breaker is open.
type BreakerCache struct {
	next SnapshotCache
	cb   *gobreaker.CircuitBreaker[[]byte]
}

func NewBreakerCache(next SnapshotCache, s circuitbreaker.Settings, log *zap.Logger) *BreakerCache {
	return &BreakerCache{
		next: next,
		cb:   circuitbreaker.New[[]byte]("snapshot-cache", s, log),
	}
}

func (b *BreakerCache) Get(ctx context.Context, sessionID string) ([]byte, error) {
	var miss bool
	data, err := b.cb.Execute(func() ([]byte, error) {
		data, err := b.next.Get(ctx, sessionID)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil, nil
		}
		return data, err
	})
	if miss || circuitbreaker.IsOpen(err) {
		return nil, ErrCacheMiss
	}
	return data, err
}

func (b *BreakerCache) Set(ctx context.Context, sessionID string, payload []byte) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Set(ctx, sessionID, payload)
	})
	if circuitbreaker.IsOpen(err) {
		return ErrCacheUnavailable
	}
	return err
}

func (b *BreakerCache) Delete(ctx context.Context, sessionID string) error {
	_, err := b.cb.Execute(func() ([]byte, error) {
		return nil, b.next.Delete(ctx, sessionID)
	})
	if circuitbreaker.IsOpen(err) {
		return b.next.Delete(ctx, sessionID)
	}
	return err
}

var _ SnapshotCache = (*BreakerCache)(nil)
