package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/api/handlers"
	"github.com/jobfill/jobfill/internal/api/middleware"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// ServiceName is reported by the health endpoint
const ServiceName = "jobfill-background"

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router
type RouterConfig struct {
	Service        *background.Service
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	EnableCORS     bool
	AllowedOrigins []string
	RateLimit      int
	RateBurst      int
	APIKey         string
	RequestTimeout time.Duration
	MaxRequestSize int64
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(cfg.Logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Handler)
	r.Use(cfg.Metrics.HTTPMiddleware)
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// CORS configuration
	if cfg.EnableCORS {
		origins := cfg.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.APIKeyHeader, "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	if cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, true).Handler)
	}

	// Health check endpoints (no auth required)
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.Service))
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(cfg.APIKey).Handler)

		actionHandler := handlers.NewActionHandler(cfg.Service, cfg.MaxRequestSize, cfg.Logger)
		r.Post("/actions/{action}", actionHandler.Dispatch)
	})

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// readyHandler checks if the store is reachable
func readyHandler(svc *background.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		if err := svc.Health(r.Context()); err != nil {
			checks["store"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			checks["store"] = "healthy"
		}

		if _, ok := svc.Agent(); ok {
			checks["page"] = "attached"
		} else {
			checks["page"] = "none"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
