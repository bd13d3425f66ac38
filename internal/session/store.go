// Package session holds the per-shopper state container: cart, wishlist,
// current user and order history, plus its versioned snapshot format.
package session

import (
	"sync"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
)

// Shopper is the contract handlers and services program against. *Store is
// the only production implementation.
type Shopper interface {
	AddToCart(p domain.Product)
	RemoveFromCart(productID string)
	UpdateQuantity(productID string, quantity int)
	ClearCart()
	CartTotal() float64
	CartCount() int
	Cart() []domain.CartLine

	AddToWishlist(p domain.Product)
	RemoveFromWishlist(productID string)
	InWishlist(productID string) bool
	Wishlist() []domain.WishlistEntry

	SetUser(u *domain.User)
	User() *domain.User

	AddOrder(o domain.Order)
	UpdateOrderStatus(orderID string, status domain.OrderStatus) bool
	Order(orderID string) (domain.Order, bool)
	Orders() []domain.Order

	Snapshot() Snapshot
}

type Store struct {
	mu       sync.Mutex
	cart     []domain.CartLine
	wishlist []domain.WishlistEntry
	user     *domain.User
	orders   []domain.Order
	now      func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for wishlist and order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Shopper = (*Store)(nil)

func (s *Store) AddToCart(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.cartIndex(p.ID); i >= 0 {
		s.cart[i].Quantity++
		return
	}
	s.cart = append(s.cart, domain.CartLine{Product: p, Quantity: 1})
}

func (s *Store) RemoveFromCart(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLine(productID)
}

// UpdateQuantity sets the line quantity. Non-positive quantities remove the
// line. There is no upper bound, stock is not consulted.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLine(productID)
		return
	}
	if i := s.cartIndex(productID); i >= 0 {
		s.cart[i].Quantity = quantity
	}
}

func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart = nil
}

func (s *Store) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, l := range s.cart {
		total += l.Subtotal()
	}
	return total
}

func (s *Store) CartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, l := range s.cart {
		n += l.Quantity
	}
	return n
}

func (s *Store) Cart() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.cart)
}

func (s *Store) AddToWishlist(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wishlistIndex(p.ID) >= 0 {
		return
	}
	s.wishlist = append(s.wishlist, domain.WishlistEntry{Product: p, AddedAt: s.now()})
}

func (s *Store) RemoveFromWishlist(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.wishlistIndex(productID); i >= 0 {
		s.wishlist = append(s.wishlist[:i], s.wishlist[i+1:]...)
	}
}

func (s *Store) InWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wishlistIndex(productID) >= 0
}

func (s *Store) Wishlist() []domain.WishlistEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneWishlist(s.wishlist)
}

// SetUser replaces the current user. nil signs the session out and leaves
// cart and wishlist untouched.
func (s *Store) SetUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = cloneUser(u)
}

func (s *Store) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.user)
}

func (s *Store) AddOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, cloneOrder(o))
}

// UpdateOrderStatus reports whether an order with the id exists. An unknown
// id leaves the history untouched.
func (s *Store) UpdateOrderStatus(orderID string, status domain.OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.orders {
		if s.orders[i].ID == orderID {
			s.orders[i].Status = status
			s.orders[i].UpdatedAt = s.now()
			return true
		}
	}
	return false
}

func (s *Store) Order(orderID string) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.ID == orderID {
			return cloneOrder(o), true
		}
	}
	return domain.Order{}, false
}

func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = cloneOrder(o)
	}
	return out
}

// caller holds s.mu
func (s *Store) cartIndex(productID string) int {
	for i, l := range s.cart {
		if l.ID == productID {
			return i
		}
	}
	return -1
}

// caller holds s.mu
func (s *Store) removeLine(productID string) {
	if i := s.cartIndex(productID); i >= 0 {
		s.cart = append(s.cart[:i], s.cart[i+1:]...)
	}
}

// caller holds s.mu
func (s *Store) wishlistIndex(productID string) int {
	for i, e := range s.wishlist {
		if e.ID == productID {
			return i
		}
	}
	return -1
}

func cloneLines(in []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, len(in))
	copy(out, in)
	return out
}

func cloneWishlist(in []domain.WishlistEntry) []domain.WishlistEntry {
	out := make([]domain.WishlistEntry, len(in))
	copy(out, in)
	return out
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
