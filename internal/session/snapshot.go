package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_jewelry/internal/domain"
)

// StoreName prefixes every persisted snapshot key.
const StoreName = "store"

// SchemaVersion is written by Encode. Version 0 is the legacy layout, either
// a bare state object or an envelope with version 0, whose orders may lack
// updated_at and status.
const SchemaVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrMalformedSnapshot  = errors.New("malformed snapshot")
)

// Snapshot is the persisted subset of a Store.
type Snapshot struct {
	Cart     []domain.CartLine      `json:"cart"`
	Wishlist []domain.WishlistEntry `json:"wishlist"`
	User     *domain.User           `json:"user"`
	Orders   []domain.Order         `json:"orders"`
}

type envelope struct {
	Version *int            `json:"version"`
	State   json.RawMessage `json:"state"`
}

// Key returns the key-value key for a session's snapshot.
func Key(sessionID string) string {
	return StoreName + ":" + sessionID
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]domain.Order, len(s.orders))
	for i, o := range s.orders {
		orders[i] = cloneOrder(o)
	}
	return Snapshot{
		Cart:     cloneLines(s.cart),
		Wishlist: cloneWishlist(s.wishlist),
		User:     cloneUser(s.user),
		Orders:   orders,
	}
}

// Restore rebuilds a Store from a snapshot.
func Restore(snap Snapshot, opts ...Option) *Store {
	s := New(opts...)
	s.cart = cloneLines(snap.Cart)
	s.wishlist = cloneWishlist(snap.Wishlist)
	s.user = cloneUser(snap.User)
	s.orders = make([]domain.Order, len(snap.Orders))
	for i, o := range snap.Orders {
		s.orders[i] = cloneOrder(o)
	}
	return s
}

func Encode(snap Snapshot) ([]byte, error) {
	state, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot state: %w", err)
	}
	version := SchemaVersion
	data, err := json.Marshal(envelope{Version: &version, State: state})
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot envelope: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if env.Version == nil {
		// bare {cart, wishlist, user, orders} object written before envelopes
		return decodeV0(data)
	}

	version := *env.Version
	if (version == 0 || version == SchemaVersion) && len(env.State) == 0 {
		return Snapshot{}, fmt.Errorf("%w: version %d without state", ErrMalformedSnapshot, version)
	}
	switch version {
	case 0:
		return decodeV0(env.State)
	case SchemaVersion:
		var snap Snapshot
		if err := json.Unmarshal(env.State, &snap); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
		}
		return snap, nil
	default:
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
}

func decodeV0(state json.RawMessage) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	for i := range snap.Orders {
		if snap.Orders[i].UpdatedAt.IsZero() {
			snap.Orders[i].UpdatedAt = snap.Orders[i].CreatedAt
		}
		if snap.Orders[i].Status == "" {
			snap.Orders[i].Status = domain.OrderStatusPlaced
		}
	}
	return snap, nil
}
