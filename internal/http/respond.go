package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fjod/go_jewelry/internal/auth"
	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/service"
	"github.com/fjod/go_jewelry/internal/session"
	"github.com/fjod/go_jewelry/pkg/logger"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20 // 1MB

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

// handleError maps package sentinels onto HTTP statuses. Anything unmapped
// is logged and reported as 500 without leaking the cause.
func handleError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, catalog.ErrInvalidCategory),
		errors.Is(err, auth.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrInvalidStatus):
		status, code = http.StatusBadRequest, "invalid_status"
	case errors.Is(err, service.ErrEmptyCart):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, service.ErrInvalidSessionID):
		status, code = http.StatusBadRequest, "invalid_session"
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, catalog.ErrDuplicateCategory),
		errors.Is(err, catalog.ErrDuplicateProduct):
		status, code = http.StatusConflict, "already_exists"
	case errors.Is(err, session.ErrUnsupportedVersion),
		errors.Is(err, session.ErrMalformedSnapshot):
		logger.FromContext(r.Context(), log).Error("stored session unreadable", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "corrupt_session", "stored session could not be read")
		return
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		logger.FromContext(r.Context(), log).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
