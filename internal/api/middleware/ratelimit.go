package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// visitorTTL is how long an idle client's bucket is kept
const visitorTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a token bucket per client address
type RateLimitMiddleware struct {
	perMinute int
	limit     rate.Limit
	burst     int
	enabled   bool
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimitMiddleware allows perMinute requests per client with the given burst
func NewRateLimitMiddleware(perMinute, burst int, enabled bool) *RateLimitMiddleware {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitMiddleware{
		perMinute: perMinute,
		limit:     rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		enabled:   enabled && perMinute > 0,
		now:       time.Now,
		visitors:  make(map[string]*visitor),
	}
}

// Handler returns the middleware handler
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip if rate limiting is disabled
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		// Skip for probes and scrapes
		switch r.URL.Path {
		case "/health", "/ready", "/metrics":
			next.ServeHTTP(w, r)
			return
		}

		now := m.now()
		limiter := m.limiterFor(clientKey(r), now)
		reservation := limiter.ReserveN(now, 1)
		delay := reservation.DelayFrom(now)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.perMinute))

		if !reservation.OK() || delay > 0 {
			reservation.CancelAt(now)
			w.Header().Set("X-RateLimit-Remaining", "0")
			httputil.ErrorFromDomain(w, domain.ErrRateLimited(roundUpSeconds(delay)))
			return
		}

		remaining := int(math.Floor(limiter.TokensAt(now)))
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) limiterFor(key string, now time.Time) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) > visitorTTL {
		for k, v := range m.visitors {
			if now.Sub(v.lastSeen) > visitorTTL {
				delete(m.visitors, k)
			}
		}
		m.lastSweep = now
	}

	v, ok := m.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(m.limit, m.burst)}
		m.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// clientKey determines the key for rate limiting. chi's RealIP middleware
// has already folded forwarding headers into RemoteAddr.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func roundUpSeconds(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Second
	}
	return time.Duration(math.Ceil(d.Seconds())) * time.Second
}
