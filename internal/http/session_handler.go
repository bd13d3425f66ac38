package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/session"
	"github.com/fjod/go_jewelry/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionService is the persistence-backed view of a shopper's store.
type SessionService interface {
	Load(ctx context.Context, sessionID string) (session.Shopper, error)
	Update(ctx context.Context, sessionID string, fn func(session.Shopper) error) (session.Shopper, error)
	Checkout(ctx context.Context, sessionID, shippingAddress string) (domain.Order, error)
	SetOrderStatus(ctx context.Context, sessionID, orderID string, status domain.OrderStatus) (bool, error)
	Reset(ctx context.Context, sessionID string) error
}

// ProductLookup resolves product ids sent by clients into catalog entries.
type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
}

type SessionHandler struct {
	sessions SessionService
	products ProductLookup
	log      *zap.Logger
}

func NewSessionHandler(sessions SessionService, products ProductLookup, log *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, products: products, log: log}
}

type ProductRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CheckoutRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
	// SessionID targets another shopper's session; empty means the caller's.
	SessionID string `json:"session_id,omitempty"`
}

type CartResponse struct {
	Items []domain.CartLine `json:"items"`
	Total float64           `json:"total"`
	Count int               `json:"count"`
}

type SessionResponse struct {
	SessionID string                 `json:"session_id"`
	Cart      CartResponse           `json:"cart"`
	Wishlist  []domain.WishlistEntry `json:"wishlist"`
	User      *domain.User           `json:"user"`
	Orders    []domain.Order         `json:"orders"`
}

func cartResponse(st session.Shopper) CartResponse {
	return CartResponse{Items: st.Cart(), Total: st.CartTotal(), Count: st.CartCount()}
}

// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sid := sessionIDFromContext(r.Context())
	st, err := h.sessions.Load(r.Context(), sid)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponse{
		SessionID: sid,
		Cart:      cartResponse(st),
		Wishlist:  st.Wishlist(),
		User:      st.User(),
		Orders:    st.Orders(),
	})
}

// DELETE /api/v1/session
func (h *SessionHandler) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Reset(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/cart
func (h *SessionHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Load(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(st))
}

// POST /api/v1/cart/items
func (h *SessionHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}

	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.AddToCart(p)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(st))
}

// PUT /api/v1/cart/items/{product_id}
func (h *SessionHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	// quantity <= 0 removes the line
	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.UpdateQuantity(productID, *req.Quantity)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(st))
}

// DELETE /api/v1/cart/items/{product_id}
func (h *SessionHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.RemoveFromCart(productID)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(st))
}

// DELETE /api/v1/cart
func (h *SessionHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.ClearCart()
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(st))
}

// GET /api/v1/wishlist
func (h *SessionHandler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Load(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, st.Wishlist())
}

// POST /api/v1/wishlist/items
func (h *SessionHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolveProduct(w, r)
	if !ok {
		return
	}

	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.AddToWishlist(p)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, st.Wishlist())
}

// DELETE /api/v1/wishlist/items/{product_id}
func (h *SessionHandler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	st, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.RemoveFromWishlist(productID)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, st.Wishlist())
}

// POST /api/v1/checkout
func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.sessions.Checkout(r.Context(), sessionIDFromContext(r.Context()), strings.TrimSpace(req.ShippingAddress))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// GET /api/v1/orders
func (h *SessionHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	st, err := h.sessions.Load(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, st.Orders())
}

// PUT /api/v1/orders/{order_id}/status
func (h *SessionHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	var req UpdateStatusRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	sid := req.SessionID
	if sid == "" {
		sid = sessionIDFromContext(r.Context())
	}

	found, err := h.sessions.SetOrderStatus(r.Context(), sid, orderID, status)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	if claims, ok := claimsFromContext(r.Context()); ok {
		logger.FromContext(r.Context(), h.log).Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("status", status.String()),
			zap.String("admin_id", claims.UserID))
	}

	st, err := h.sessions.Load(r.Context(), sid)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	order, _ := st.Order(orderID)
	respondJSON(w, http.StatusOK, order)
}

func (h *SessionHandler) resolveProduct(w http.ResponseWriter, r *http.Request) (domain.Product, bool) {
	var req ProductRequestDTO
	if !decodeJSON(w, r, &req) {
		return domain.Product{}, false
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return domain.Product{}, false
	}

	p, err := h.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		handleError(w, r, h.log, err)
		return domain.Product{}, false
	}
	return p, true
}
