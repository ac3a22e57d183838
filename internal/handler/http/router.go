package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/bookstore/internal/domain"
	"github.com/utafrali/bookstore/internal/service"
	"github.com/utafrali/bookstore/pkg/health"
	"github.com/utafrali/bookstore/pkg/middleware"
)

const serviceName = "bookstore"

// RouterConfig holds the HTTP settings that are not handlers.
type RouterConfig struct {
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string

	// AuthRateLimitRPS limits register and login per client IP. Zero
	// disables the limit.
	AuthRateLimitRPS   float64
	AuthRateLimitBurst int
	// TrustedProxyCIDRs are the proxies allowed to name the client via
	// forwarding headers.
	TrustedProxyCIDRs []string
}

// NewRouter creates a chi router with all bookstore routes registered.
func NewRouter(
	authService *service.AuthService,
	bookService *service.BookService,
	reviewService *service.ReviewService,
	ratingService *service.RatingService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	requireAuth := middleware.Auth(TokenValidator(authService))
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	authHandler := NewAuthHandler(authService, logger)
	bookHandler := NewBookHandler(bookService, ratingService, logger)
	reviewHandler := NewReviewHandler(reviewService, logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RPS:            cfg.AuthRateLimitRPS,
				Burst:          cfg.AuthRateLimitBurst,
				TrustedProxies: cfg.TrustedProxyCIDRs,
			}, logger))

			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authHandler.GetProfile)
			r.Put("/me", authHandler.UpdateProfile)
			r.Put("/me/password", authHandler.ChangePassword)
		})
	})

	r.Route("/api/v1/books", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", bookHandler.ListBooks)
		r.Get("/{id}", bookHandler.GetBook)
		r.Get("/{id}/reviews", reviewHandler.ListReviews)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/{id}/reviews", reviewHandler.CreateReview)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)

			r.Post("/", bookHandler.CreateBook)
			r.Put("/{id}", bookHandler.UpdateBook)
			r.Delete("/{id}", bookHandler.DeleteBook)
			r.Post("/{id}/rating/recompute", bookHandler.RecomputeRating)
		})
	})

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/{id}", reviewHandler.GetReview)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Put("/{id}", reviewHandler.UpdateReview)
			r.Delete("/{id}", reviewHandler.DeleteReview)
			r.Put("/{id}/like", reviewHandler.ToggleLike)
		})
	})

	return r
}
