package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_jewelry/internal/auth"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	SessionCookieName = "shop-session"
	SessionHeader     = "X-Session-ID"

	sessionValueKey = "sid"
	sessionMaxAge   = 90 * 24 * 60 * 60
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	claimsKey
)

// TokenParser validates bearer tokens.
type TokenParser interface {
	ParseToken(token string) (auth.Claims, error)
}

func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionMiddleware resolves the shopper's session id from the X-Session-ID
// header or the signed cookie, issuing a new cookie when neither is present.
func SessionMiddleware(store sessions.Store, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sid := strings.TrimSpace(r.Header.Get(SessionHeader)); sid != "" {
				next.ServeHTTP(w, r.WithContext(withSessionID(r.Context(), sid)))
				return
			}

			// a cookie signed with a rotated key yields an error and a fresh session
			sess, _ := store.Get(r, SessionCookieName)
			sid, _ := sess.Values[sessionValueKey].(string)
			if sid == "" {
				sid = uuid.NewString()
				sess.Values[sessionValueKey] = sid
				if err := sess.Save(r, w); err != nil {
					logger.FromContext(r.Context(), log).Warn("failed to save session cookie", zap.Error(err))
				}
			}

			next.ServeHTTP(w, r.WithContext(withSessionID(r.Context(), sid)))
		})
	}
}

// AdminOnly requires a bearer token carrying the admin role.
func AdminOnly(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims, err := tokens.ParseToken(strings.TrimSpace(token))
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			if claims.Role != domain.RoleAdmin {
				respondError(w, http.StatusForbidden, "permission_denied", "admin role required")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger logs one line per request with the chi request id and, when
// tracing is active, the trace and span ids.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.FromContext(r.Context(), log).Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func withSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sid)
}

func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

func claimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}
