package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func sessionHeader(sid string) map[string]string {
	return map[string]string{SessionHeader: sid}
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCart_Scenario(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("shopper-1")

	rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	cart := decodeBody[CartResponse](t, rec)
	assert.Equal(t, 100.0, cart.Total)

	rec = srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	cart = decodeBody[CartResponse](t, rec)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, 200.0, cart.Total)
	assert.Equal(t, 2, cart.Count)

	rec = srv.do(t, http.MethodPut, "/api/v1/cart/items/1", map[string]int{"quantity": 1}, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100.0, decodeBody[CartResponse](t, rec).Total)

	rec = srv.do(t, http.MethodDelete, "/api/v1/cart/items/1", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	cart = decodeBody[CartResponse](t, rec)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0.0, cart.Total)
}

func TestCart_PersistsAcrossRequests(t *testing.T) {
	srv := newTestServer(t)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "2"}, sessionHeader("a"))
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "3"}, sessionHeader("a"))

	rec := srv.do(t, http.MethodGet, "/api/v1/cart", nil, sessionHeader("a"))
	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[CartResponse](t, rec)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 425.0, cart.Total)

	// other sessions are isolated
	rec = srv.do(t, http.MethodGet, "/api/v1/cart", nil, sessionHeader("b"))
	assert.Empty(t, decodeBody[CartResponse](t, rec).Items)
}

func TestCart_UpdateQuantityZeroRemoves(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)

	rec := srv.do(t, http.MethodPut, "/api/v1/cart/items/1", map[string]int{"quantity": 0}, h)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[CartResponse](t, rec).Items)
}

func TestCart_ClearCart(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "2"}, h)

	rec := srv.do(t, http.MethodDelete, "/api/v1/cart", nil, h)

	require.Equal(t, http.StatusOK, rec.Code)
	cart := decodeBody[CartResponse](t, rec)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0, cart.Count)
}

func TestAddItem_Errors(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"unknown product", ProductRequestDTO{ProductID: "999"}, http.StatusNotFound, "not_found"},
		{"missing product id", ProductRequestDTO{}, http.StatusBadRequest, "invalid_product_id"},
		{"unknown field", map[string]string{"product": "1"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/api/v1/cart/items", tt.body, h)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeBody[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUpdateQuantity_MissingQuantity(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodPut, "/api/v1/cart/items/1", map[string]any{}, sessionHeader("s"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_quantity", decodeBody[ErrorResponse](t, rec).Code)
}

func TestWishlist_AddIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")

	srv.do(t, http.MethodPost, "/api/v1/wishlist/items", ProductRequestDTO{ProductID: "2"}, h)
	rec := srv.do(t, http.MethodPost, "/api/v1/wishlist/items", ProductRequestDTO{ProductID: "2"}, h)
	require.Equal(t, http.StatusCreated, rec.Code)
	wl := decodeBody[[]domain.WishlistEntry](t, rec)
	require.Len(t, wl, 1)
	assert.False(t, wl[0].AddedAt.IsZero())

	rec = srv.do(t, http.MethodDelete, "/api/v1/wishlist/items/2", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]domain.WishlistEntry](t, rec))

	rec = srv.do(t, http.MethodGet, "/api/v1/wishlist", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]domain.WishlistEntry](t, rec))
}

func TestCheckout(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")

	rec := srv.do(t, http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{ShippingAddress: "1 Main St"}, h)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "empty_cart", decodeBody[ErrorResponse](t, rec).Code)

	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "3"}, h)

	rec = srv.do(t, http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{ShippingAddress: " 1 Main St "}, h)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeBody[domain.Order](t, rec)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPlaced, order.Status)
	assert.Equal(t, 280.0, order.Total)
	assert.Equal(t, "1 Main St", order.ShippingAddress)
	assert.Len(t, order.Items, 2)

	rec = srv.do(t, http.MethodGet, "/api/v1/cart", nil, h)
	assert.Empty(t, decodeBody[CartResponse](t, rec).Items)

	rec = srv.do(t, http.MethodGet, "/api/v1/orders", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeBody[[]domain.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func placeOrder(t *testing.T, srv *testServer, sid string) domain.Order {
	t.Helper()
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "2"}, sessionHeader(sid))
	rec := srv.do(t, http.MethodPost, "/api/v1/checkout", CheckoutRequestDTO{}, sessionHeader(sid))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[domain.Order](t, rec)
}

func TestUpdateOrderStatus_Authorization(t *testing.T) {
	srv := newTestServer(t)
	order := placeOrder(t, srv, "s")
	path := "/api/v1/orders/" + order.ID + "/status"
	body := UpdateStatusRequestDTO{Status: "shipped"}

	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"customer", "Bearer customer-token", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sessionHeader("s")
			if tt.auth != "" {
				h["Authorization"] = tt.auth
			}
			rec := srv.do(t, http.MethodPut, path, body, h)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := srv.do(t, http.MethodGet, "/api/v1/orders", nil, sessionHeader("s"))
	orders := decodeBody[[]domain.Order](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.OrderStatusPlaced, orders[0].Status)
}

func TestUpdateOrderStatus_Admin(t *testing.T) {
	srv := newTestServer(t)
	order := placeOrder(t, srv, "shopper")
	path := "/api/v1/orders/" + order.ID + "/status"
	admin := map[string]string{SessionHeader: "admin-session", "Authorization": "Bearer admin-token"}

	rec := srv.do(t, http.MethodPut, path, UpdateStatusRequestDTO{Status: "shipped", SessionID: "shopper"}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[domain.Order](t, rec)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	rec = srv.do(t, http.MethodPut, path, UpdateStatusRequestDTO{Status: "lost", SessionID: "shopper"}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", decodeBody[ErrorResponse](t, rec).Code)

	// defaults to the caller's own session, which has no such order
	rec = srv.do(t, http.MethodPut, path, UpdateStatusRequestDTO{Status: "delivered"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodPut, "/api/v1/orders/missing/status", UpdateStatusRequestDTO{Status: "shipped", SessionID: "shopper"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetSessionAndReset(t *testing.T) {
	srv := newTestServer(t)
	h := sessionHeader("s")
	srv.do(t, http.MethodPost, "/api/v1/cart/items", ProductRequestDTO{ProductID: "1"}, h)
	srv.do(t, http.MethodPost, "/api/v1/wishlist/items", ProductRequestDTO{ProductID: "2"}, h)

	rec := srv.do(t, http.MethodGet, "/api/v1/session", nil, h)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[SessionResponse](t, rec)
	assert.Equal(t, "s", resp.SessionID)
	assert.Len(t, resp.Cart.Items, 1)
	assert.Len(t, resp.Wishlist, 1)
	assert.Nil(t, resp.User)
	assert.Empty(t, resp.Orders)

	rec = srv.do(t, http.MethodDelete, "/api/v1/session", nil, h)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodGet, "/api/v1/session", nil, h)
	resp = decodeBody[SessionResponse](t, rec)
	assert.Empty(t, resp.Cart.Items)
	assert.Empty(t, resp.Wishlist)
}
