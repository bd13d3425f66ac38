package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_jewelry/pkg/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

type mockCache struct {
	mu    sync.RWMutex
	data  map[string][]byte
	err   error
	calls int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[sessionID]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(_ context.Context, sessionID string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	m.data[sessionID] = payload
	return nil
}

func (m *mockCache) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	delete(m.data, sessionID)
	return nil
}

func (m *mockCache) callCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

func TestBreakerCache_PassesThrough(t *testing.T) {
	inner := newMockCache()
	c := NewBreakerCache(inner, circuitbreaker.Settings{}, nil)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "s1", []byte("payload")))
	data, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, c.Delete(ctx, "s1"))
	_, err = c.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestBreakerCache_MissesDoNotTrip(t *testing.T) {
	inner := newMockCache()
	c := NewBreakerCache(inner, circuitbreaker.Settings{ConsecutiveFailures: 2}, nil)

	for i := 0; i < 10; i++ {
		_, err := c.Get(context.Background(), "absent")
		assert.ErrorIs(t, err, ErrCacheMiss)
	}
	assert.Equal(t, 10, inner.callCount())
}

func TestBreakerCache_OpenReportsMiss(t *testing.T) {
	inner := newMockCache()
	inner.err = errRedisDown
	c := NewBreakerCache(inner, circuitbreaker.Settings{ConsecutiveFailures: 2, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Get(ctx, "s1")
		assert.ErrorIs(t, err, errRedisDown)
	}

	_, err := c.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, c.Set(ctx, "s1", []byte("x")), ErrCacheUnavailable)
	assert.Equal(t, 2, inner.callCount())
}

func TestBreakerCache_DeleteReachesInnerWhileOpen(t *testing.T) {
	inner := newMockCache()
	inner.data["s1"] = []byte("old")
	inner.err = errRedisDown
	c := NewBreakerCache(inner, circuitbreaker.Settings{ConsecutiveFailures: 2, Timeout: time.Hour}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Get(ctx, "s1")
		require.ErrorIs(t, err, errRedisDown)
	}
	_, err := c.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrCacheMiss, "breaker should be open")

	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	require.NoError(t, c.Delete(ctx, "s1"))
	inner.mu.RLock()
	_, ok := inner.data["s1"]
	inner.mu.RUnlock()
	assert.False(t, ok)
}
