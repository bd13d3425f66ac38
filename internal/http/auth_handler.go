package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/session"
	"go.uber.org/zap"
)

type Authenticator interface {
	Register(ctx context.Context, name, email, password string, role domain.Role) (domain.User, error)
	Login(ctx context.Context, email, password string) (domain.User, error)
}

type AuthHandler struct {
	auth     Authenticator
	sessions SessionService
	log      *zap.Logger
}

func NewAuthHandler(a Authenticator, sessions SessionService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: a, sessions: sessions, log: log}
}

type RegisterRequestDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/register
// Self-registration always creates customers; admins come from shopctl.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password, domain.RoleCustomer)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if !h.signIn(w, r, u) {
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if !h.signIn(w, r, u) {
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	_, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.SetUser(nil)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, u domain.User) bool {
	_, err := h.sessions.Update(r.Context(), sessionIDFromContext(r.Context()), func(st session.Shopper) error {
		st.SetUser(&u)
		return nil
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return false
	}
	return true
}
