package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/session"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	StatusTopic   = "storefront-order-status"
	ConsumerGroup = "storefront"
)

const (
	defaultRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff     = 30 * time.Second
)

var (
	ErrInvalidStatusUpdate = errors.New("invalid status update")
	ErrUnknownOrder        = errors.New("unknown order")
)

// StatusUpdate is the message fulfillment writes when an order moves on.
type StatusUpdate struct {
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

type StatusUpdater interface {
	SetOrderStatus(ctx context.Context, sessionID, orderID string, status domain.OrderStatus) (bool, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StatusConsumer applies status updates from StatusTopic to stored sessions.
// A message is committed once it is applied or rejected for good: malformed,
// invalid status, unknown order or undecodable session. Any other failure is
// retried with backoff and the message stays uncommitted.
type StatusConsumer struct {
	updater StatusUpdater
	reader  messageReader
	log     *zap.Logger

	backoff    time.Duration
	maxBackoff time.Duration
}

func NewStatusConsumer(updater StatusUpdater, log *zap.Logger, brokers ...string) *StatusConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    StatusTopic,
		GroupID:  ConsumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return newStatusConsumer(updater, reader, log)
}

func newStatusConsumer(updater StatusUpdater, reader messageReader, log *zap.Logger) *StatusConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatusConsumer{
		updater:    updater,
		reader:     reader,
		log:        log,
		backoff:    defaultRetryBackoff,
		maxBackoff: maxRetryBackoff,
	}
}

// Run blocks until ctx is cancelled.
func (c *StatusConsumer) Run(ctx context.Context) {
	delay := c.backoff
	for {
		if ctx.Err() != nil {
			return
		}
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("error reading status message", zap.Error(err), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return
			}
			delay = c.grow(delay)
			continue
		}
		delay = c.backoff

		if !c.process(ctx, m) {
			return
		}
	}
}

// process retries m until it is applied or fails permanently, then commits
// it. It reports false when ctx ended first.
func (c *StatusConsumer) process(ctx context.Context, m kafka.Message) bool {
	delay := c.backoff
	for {
		err := c.handle(ctx, m)
		if err == nil || isPermanent(err) {
			if err != nil {
				c.log.Warn("status update skipped",
					zap.Int64("offset", m.Offset),
					zap.ByteString("key", m.Key),
					zap.Error(err))
			}
			return c.commit(ctx, m)
		}
		if ctx.Err() != nil {
			return false
		}

		c.log.Warn("status update failed, retrying",
			zap.Int64("offset", m.Offset),
			zap.Duration("retry_in", delay),
			zap.Error(err))
		if !sleep(ctx, delay) {
			return false
		}
		delay = c.grow(delay)
	}
}

// commit failures are logged only; a redelivered update is applied again
// with the same result.
func (c *StatusConsumer) commit(ctx context.Context, m kafka.Message) bool {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		if ctx.Err() != nil {
			return false
		}
		c.log.Warn("commit status message failed", zap.Int64("offset", m.Offset), zap.Error(err))
	}
	return true
}

func (c *StatusConsumer) grow(d time.Duration) time.Duration {
	d *= 2
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrInvalidStatusUpdate) ||
		errors.Is(err, ErrUnknownOrder) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, session.ErrMalformedSnapshot) ||
		errors.Is(err, session.ErrUnsupportedVersion)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *StatusConsumer) Close() error {
	return c.reader.Close()
}

func (c *StatusConsumer) handle(ctx context.Context, m kafka.Message) error {
	var upd StatusUpdate
	if err := json.Unmarshal(m.Value, &upd); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStatusUpdate, err)
	}
	if upd.SessionID == "" || upd.OrderID == "" {
		return fmt.Errorf("%w: session_id and order_id are required", ErrInvalidStatusUpdate)
	}
	status, err := domain.ParseOrderStatus(upd.Status)
	if err != nil {
		return err
	}

	found, err := c.updater.SetOrderStatus(ctx, upd.SessionID, upd.OrderID, status)
	if err != nil {
		return fmt.Errorf("set status of order %s: %w", upd.OrderID, err)
	}
	if !found {
		return fmt.Errorf("%w: %s in session %s", ErrUnknownOrder, upd.OrderID, upd.SessionID)
	}

	c.log.Info("order status updated from fulfillment",
		zap.String("order_id", upd.OrderID),
		zap.String("status", status.String()))
	return nil
}
