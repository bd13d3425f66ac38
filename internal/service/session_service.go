package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_jewelry/internal/cache"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/events"
	"github.com/fjod/go_jewelry/internal/repository"
	"github.com/fjod/go_jewelry/internal/session"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidSessionID = errors.New("invalid session id")

	errOrderNotFound = errors.New("order not found")
)

type SessionService struct {
	repo      repository.SnapshotRepository
	cache     cache.SnapshotCache
	publisher events.Publisher
	log       *zap.Logger

	sfg   singleflight.Group // Prevents cache stampede
	locks *stripedLocks
	fills sync.WaitGroup

	newID func() string
	now   func() time.Time
}

type Option func(*SessionService)

func WithLogger(log *zap.Logger) Option {
	return func(s *SessionService) { s.log = log }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *SessionService) { s.publisher = p }
}

// WithIDGenerator overrides order id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *SessionService) { s.newID = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *SessionService) { s.now = now }
}

func NewSessionService(repo repository.SnapshotRepository, c cache.SnapshotCache, opts ...Option) *SessionService {
	s := &SessionService{
		repo:      repo,
		cache:     c,
		publisher: events.NopPublisher{},
		log:       zap.NewNop(),
		locks:     newStripedLocks(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the session's store, or an empty one for an unknown session.
// The returned store is private to the caller; mutations are not persisted
// unless made through Update.
func (s *SessionService) Load(ctx context.Context, sessionID string) (session.Shopper, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		payload, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			snap, errDecode := session.Decode(payload)
			if errDecode == nil {
				return snap, nil
			}
			s.log.Warn("cached snapshot undecodable", zap.String("session_id", sessionID), zap.Error(errDecode))
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get error", zap.String("session_id", sessionID), zap.Error(err))
		}

		gen := s.locks.generation(sessionID)
		snap, payload, err := s.fromRepository(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			s.fillCache(sessionID, payload, gen)
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	return s.restore(v.(session.Snapshot)), nil
}

// Update applies fn to the session's store and persists the result. Updates
// to the same session are serialized. When fn fails nothing is written.
// The new snapshot replaces the cached one.
func (s *SessionService) Update(ctx context.Context, sessionID string, fn func(session.Shopper) error) (session.Shopper, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	lock := s.locks.lock(sessionID)
	defer lock.Unlock()

	// read from the repository; the cache may trail a concurrent write
	snap, _, err := s.fromRepository(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st := s.restore(snap)

	if err := fn(st); err != nil {
		return nil, err
	}

	payload, err := session.Encode(st.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.repo.Put(ctx, sessionID, payload); err != nil {
		s.log.Error("repo put snapshot error", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	lock.gen.Add(1)
	s.sfg.Forget(sessionID)
	s.writeThrough(sessionID, payload)
	return st, nil
}

// Checkout turns the cart into a placed order and empties the cart.
func (s *SessionService) Checkout(ctx context.Context, sessionID, shippingAddress string) (domain.Order, error) {
	var order domain.Order
	_, err := s.Update(ctx, sessionID, func(st session.Shopper) error {
		lines := st.Cart()
		if len(lines) == 0 {
			return ErrEmptyCart
		}
		order = domain.NewOrderFromCart(s.newID(), lines, s.now())
		order.ShippingAddress = shippingAddress
		if u := st.User(); u != nil {
			order.UserID = u.ID
		}
		st.AddOrder(order)
		st.ClearCart()
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	if err := s.publisher.OrderPlaced(ctx, sessionID, order); err != nil {
		s.log.Warn("publish order placed failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	return order, nil
}

// SetOrderStatus reports false when the session has no order with orderID.
// Any status in the enumeration may replace any other.
func (s *SessionService) SetOrderStatus(ctx context.Context, sessionID, orderID string, status domain.OrderStatus) (bool, error) {
	if _, err := domain.ParseOrderStatus(string(status)); err != nil {
		return false, err
	}

	var updated domain.Order
	_, err := s.Update(ctx, sessionID, func(st session.Shopper) error {
		if !st.UpdateOrderStatus(orderID, status) {
			return errOrderNotFound
		}
		updated, _ = st.Order(orderID)
		return nil
	})
	if errors.Is(err, errOrderNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.publisher.OrderStatusChanged(ctx, sessionID, updated); err != nil {
		s.log.Warn("publish order status failed", zap.String("order_id", orderID), zap.Error(err))
	}
	return true, nil
}

// Reset drops everything stored for the session.
func (s *SessionService) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}

	lock := s.locks.lock(sessionID)
	defer lock.Unlock()

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		s.log.Error("repo delete snapshot error", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	lock.gen.Add(1)
	s.sfg.Forget(sessionID)
	if err := s.invalidateCache(sessionID); err != nil {
		s.log.Error("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
	return nil
}

// Wait blocks until background cache fills have finished.
func (s *SessionService) Wait() {
	s.fills.Wait()
}

// fromRepository returns an empty snapshot and nil payload when the session
// has never been saved.
func (s *SessionService) fromRepository(ctx context.Context, sessionID string) (session.Snapshot, []byte, error) {
	payload, err := s.repo.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return session.Snapshot{}, nil, nil
	}
	if err != nil {
		return session.Snapshot{}, nil, err
	}

	snap, err := session.Decode(payload)
	if err != nil {
		return session.Snapshot{}, nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return snap, payload, nil
}

func (s *SessionService) restore(snap session.Snapshot) *session.Store {
	return session.Restore(snap, session.WithClock(s.now))
}

// fillCache stores a snapshot read from the repository. The fill is dropped
// when a write to the session's stripe landed after gen was taken.
func (s *SessionService) fillCache(sessionID string, payload []byte, gen uint64) {
	s.fills.Add(1)
	go func() {
		defer s.fills.Done()
		lock := s.locks.lock(sessionID)
		defer lock.Unlock()
		if lock.gen.Load() != gen {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		err := s.cache.Set(ctx, sessionID, payload)
		switch {
		case errors.Is(err, cache.ErrCacheUnavailable):
			s.log.Debug("cache fill skipped", zap.String("session_id", sessionID))
		case err != nil:
			s.log.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()
}

// writeThrough replaces the cached snapshot after a write. When the cache
// refuses the new payload the old entry is deleted instead. Must be called
// with the session's lock held.
func (s *SessionService) writeThrough(sessionID string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Set(ctx, sessionID, payload)
	if err == nil {
		return
	}
	s.log.Warn("cache set error", zap.String("session_id", sessionID), zap.Error(err))
	if err := s.invalidateCache(sessionID); err != nil {
		s.log.Error("cache invalidate error", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (s *SessionService) invalidateCache(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return s.cache.Delete(ctx, sessionID)
}
