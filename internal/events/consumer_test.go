package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockReader hands out queued messages, then blocks until ctx is done.
type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	errs      []error
	committed []kafka.Message
	closed    bool
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		m.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockReader) commits() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.committed...)
}

type statusCall struct {
	sessionID, orderID string
	status             domain.OrderStatus
}

type mockUpdater struct {
	mu    sync.Mutex
	calls []statusCall
	known map[string]bool
	// the first failures calls return err; with failures zero err is permanent
	failures int
	err      error
}

func (m *mockUpdater) SetOrderStatus(_ context.Context, sessionID, orderID string, status domain.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, statusCall{sessionID, orderID, status})
	if m.err != nil && (m.failures == 0 || len(m.calls) <= m.failures) {
		return false, m.err
	}
	return m.known[orderID], nil
}

func (m *mockUpdater) recorded() []statusCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]statusCall(nil), m.calls...)
}

func msg(value string) kafka.Message {
	return kafka.Message{Value: []byte(value)}
}

func newTestConsumer(u StatusUpdater, r messageReader, log *zap.Logger) *StatusConsumer {
	c := newStatusConsumer(u, r, log)
	c.backoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond
	return c
}

// runUntil runs c until cond holds, then cancels and waits for Run to return.
func runUntil(t *testing.T, c *StatusConsumer, cond func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after cancel")
	}
}

func committedCount(r *mockReader, n int) func() bool {
	return func() bool { return len(r.commits()) >= n }
}

func TestStatusConsumer_AppliesUpdates(t *testing.T) {
	r := &mockReader{queue: []kafka.Message{
		msg(`{"session_id":"s1","order_id":"o1","status":"shipped"}`),
		msg(`{"session_id":"s2","order_id":"o2","status":"delivered"}`),
	}}
	u := &mockUpdater{known: map[string]bool{"o1": true, "o2": true}}

	runUntil(t, newTestConsumer(u, r, nil), committedCount(r, 2))

	assert.Equal(t, []statusCall{
		{"s1", "o1", domain.OrderStatusShipped},
		{"s2", "o2", domain.OrderStatusDelivered},
	}, u.recorded())
}

func TestStatusConsumer_SkipsBadMessages(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := &mockReader{
		errs: []error{errors.New("broker hiccup")},
		queue: []kafka.Message{
			msg(`not json`),
			msg(`{"order_id":"o1","status":"shipped"}`),
			msg(`{"session_id":"s1","order_id":"o1","status":"lost"}`),
			msg(`{"session_id":"s1","order_id":"gone","status":"shipped"}`),
			msg(`{"session_id":"s1","order_id":"o1","status":"cancelled"}`),
		},
	}
	u := &mockUpdater{known: map[string]bool{"o1": true}}

	runUntil(t, newTestConsumer(u, r, zap.New(core)), committedCount(r, 5))

	calls := u.recorded()
	require.Len(t, calls, 2)
	assert.Equal(t, "gone", calls[0].orderID)
	assert.Equal(t, domain.OrderStatusCancelled, calls[1].status)
	assert.Equal(t, 1, logs.FilterMessage("error reading status message").Len())
	assert.Equal(t, 4, logs.FilterMessage("status update skipped").Len())
	assert.Len(t, r.commits(), 5)
}

func TestStatusConsumer_RetriesTransientErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	update := msg(`{"session_id":"s1","order_id":"o1","status":"shipped"}`)
	update.Offset = 42
	r := &mockReader{queue: []kafka.Message{update}}
	u := &mockUpdater{known: map[string]bool{"o1": true}, failures: 2, err: errors.New("mongo down")}

	runUntil(t, newTestConsumer(u, r, zap.New(core)), committedCount(r, 1))

	assert.Len(t, u.recorded(), 3)
	require.Len(t, r.commits(), 1)
	assert.Equal(t, int64(42), r.commits()[0].Offset)
	assert.Equal(t, 2, logs.FilterMessage("status update failed, retrying").Len())
	assert.Zero(t, logs.FilterMessage("status update skipped").Len())
}

func TestStatusConsumer_FailingUpdateStaysUncommitted(t *testing.T) {
	r := &mockReader{queue: []kafka.Message{
		msg(`{"session_id":"s1","order_id":"o1","status":"shipped"}`),
		msg(`{"session_id":"s1","order_id":"o2","status":"shipped"}`),
	}}
	u := &mockUpdater{known: map[string]bool{"o1": true, "o2": true}, err: errors.New("mongo down")}

	runUntil(t, newTestConsumer(u, r, nil), func() bool { return len(u.recorded()) >= 5 })

	assert.Empty(t, r.commits())
	for _, call := range u.recorded() {
		assert.Equal(t, "o1", call.orderID, "later messages wait behind the failing one")
	}
}

func TestStatusConsumer_BackoffIsCapped(t *testing.T) {
	c := newStatusConsumer(&mockUpdater{}, &mockReader{}, nil)

	assert.Equal(t, 2*defaultRetryBackoff, c.grow(defaultRetryBackoff))
	assert.Equal(t, maxRetryBackoff, c.grow(maxRetryBackoff))
}

func TestStatusConsumer_HandleErrors(t *testing.T) {
	c := newStatusConsumer(&mockUpdater{err: errors.New("mongo down")}, &mockReader{}, nil)

	err := c.handle(context.Background(), msg(`{"session_id":"s","order_id":"o","status":"shipped"}`))
	assert.ErrorContains(t, err, "mongo down")

	err = c.handle(context.Background(), msg(`{"session_id":"s","order_id":"o","status":"nope"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	err = c.handle(context.Background(), msg(`[]`))
	assert.ErrorIs(t, err, ErrInvalidStatusUpdate)

	c = newStatusConsumer(&mockUpdater{known: map[string]bool{}}, &mockReader{}, nil)
	err = c.handle(context.Background(), msg(`{"session_id":"s","order_id":"o","status":"shipped"}`))
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.True(t, isPermanent(err))
	assert.False(t, isPermanent(errors.New("mongo down")))
}

func TestStatusConsumer_Close(t *testing.T) {
	r := &mockReader{}
	require.NoError(t, newStatusConsumer(&mockUpdater{}, r, nil).Close())
	assert.True(t, r.closed)
}
