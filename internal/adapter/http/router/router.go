package router

import (
	"net/http"
	"time"

	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/handler"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/adapter/http/middleware"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/auth"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/logger"
	"github.com/Abdurahmanit/GroupProject/marketplace-service/internal/platform/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

// NewRouter builds the HTTP handler tree: /api for the JSON API and /uploads
// for stored media.
func NewRouter(
	listings *handler.ListingHandler,
	authHandler *handler.AuthHandler,
	tokens *auth.TokenManager,
	otpLimiter *middleware.RateLimiter,
	m *metrics.MetricsManager,
	log *logger.Logger,
) http.Handler {
	mux := chi.NewRouter()

	mux.Use(chimw.RealIP)
	mux.Use(middleware.RequestID())
	mux.Use(middleware.Logger(log))
	if m != nil {
		mux.Use(middleware.Metrics(m))
	}
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.Timeout(requestTimeout))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteMessage(w, http.StatusOK, "ok")
	})
	mux.Get("/uploads/{key}", listings.ServeMedia)

	mux.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(tokens, log))
		SetupListingRoutes(r, listings)
		SetupAuthRoutes(r, authHandler, otpLimiter)
	})

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handler.WriteMessage(w, http.StatusNotFound, "Route not found")
	})
	return mux
}

// SetupListingRoutes mounts the listing endpoints on an /api sub-router.
func SetupListingRoutes(r chi.Router, h *handler.ListingHandler) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin)
		r.Post("/add-products", h.AddProduct)
		r.Put("/products/{id}", h.UpdateProduct)
		r.Delete("/products/remove/{productId}", h.DeleteProduct)
	})

	r.With(middleware.RequireAuth).Get("/products/mine", h.MyProducts)

	r.Get("/get-products", h.GetProducts)
	r.Get("/products/search", h.SearchProducts)
	r.Get("/products/filters", h.FilterOptions)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/browse", h.Browse)
	r.Get("/{category}/features", h.CategoryFeatures)
}

// SetupAuthRoutes mounts the one-time-code login and user administration.
// Code requests are throttled per client when limiter is set.
func SetupAuthRoutes(r chi.Router, h *handler.AuthHandler, limiter *middleware.RateLimiter) {
	if limiter != nil {
		r.With(limiter.Middleware).Post("/auth/otp/request", h.RequestOTP)
	} else {
		r.Post("/auth/otp/request", h.RequestOTP)
	}
	r.Post("/auth/otp/verify", h.VerifyOTP)
	r.With(middleware.RequireAdmin).Get("/admin/users", h.ListUsers)
}
