package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// APIKeyHeader carries the shared key; a Bearer token is accepted too
const APIKeyHeader = "X-API-Key"

// AuthMiddleware guards the action API with a single shared key. The page
// agent and the background service run as the same user, so there is no
// per-caller identity.
type AuthMiddleware struct {
	apiKey []byte
}

// NewAuthMiddleware creates the middleware. An empty key lets every
// request through.
func NewAuthMiddleware(apiKey string) *AuthMiddleware {
	return &AuthMiddleware{apiKey: []byte(apiKey)}
}

// Enabled reports whether a key is configured
func (m *AuthMiddleware) Enabled() bool {
	return len(m.apiKey) > 0
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth for health checks and scrapes
		if !m.Enabled() || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			httputil.JSONError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "API key required", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), m.apiKey) != 1 {
			httputil.JSONError(w, http.StatusUnauthorized, domain.ErrCodeUnauthorized, "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// isPublicPath checks if the path should skip authentication
func isPublicPath(path string) bool {
	publicPaths := []string{
		"/health",
		"/ready",
		"/metrics",
	}
	for _, p := range publicPaths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// extractAPIKey extracts the API key from request headers
func extractAPIKey(r *http.Request) string {
	// Try X-API-Key header first
	if apiKey := r.Header.Get(APIKeyHeader); apiKey != "" {
		return apiKey
	}

	// Try Authorization header with Bearer token
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}
