package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Sessions       SessionService
	Catalog        Catalog
	Auth           Authenticator
	Tokens         TokenParser
	CookieStore    sessions.Store
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// NewRouter builds the storefront API. The returned handler is wrapped for
// OpenTelemetry so request logs carry trace ids.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sessionHandler := NewSessionHandler(cfg.Sessions, cfg.Catalog, log)
	catalogHandler := NewCatalogHandler(cfg.Catalog, log)
	authHandler := NewAuthHandler(cfg.Auth, cfg.Sessions, log)
	admin := AdminOnly(cfg.Tokens)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalogHandler.ListProducts)
			r.Get("/{id}", catalogHandler.GetProduct)
			r.With(admin).Post("/", catalogHandler.CreateProduct)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", catalogHandler.ListCategories)
			r.Get("/{id}", catalogHandler.GetCategory)
			r.Group(func(r chi.Router) {
				r.Use(admin)
				r.Post("/", catalogHandler.CreateCategory)
				r.Put("/{id}", catalogHandler.UpdateCategory)
				r.Delete("/{id}", catalogHandler.DeleteCategory)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(cfg.CookieStore, log))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/logout", authHandler.Logout)
			})

			r.Route("/v1", func(r chi.Router) {
				r.Get("/session", sessionHandler.GetSession)
				r.Delete("/session", sessionHandler.ResetSession)

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", sessionHandler.GetCart)
					r.Delete("/", sessionHandler.ClearCart)
					r.Post("/items", sessionHandler.AddItem)
					r.Put("/items/{product_id}", sessionHandler.UpdateQuantity)
					r.Delete("/items/{product_id}", sessionHandler.RemoveItem)
				})

				r.Route("/wishlist", func(r chi.Router) {
					r.Get("/", sessionHandler.GetWishlist)
					r.Post("/items", sessionHandler.AddToWishlist)
					r.Delete("/items/{product_id}", sessionHandler.RemoveFromWishlist)
				})

				r.Post("/checkout", sessionHandler.Checkout)
				r.Get("/orders", sessionHandler.ListOrders)
				r.With(admin).Put("/orders/{order_id}/status", sessionHandler.UpdateOrderStatus)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
	)
}
