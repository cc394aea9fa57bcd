package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"betterats/internal/errors"
	"betterats/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 10 * time.Minute
	limiterEvictionAge     = 10 * time.Minute
)

// RateLimiter keeps one token bucket per client key (IP or API key).
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	rejected int64
	done     chan struct{}
	logger   *errors.Logger
}

// NewRateLimiter allows requestsPerMin per key with the given burst and
// starts a goroutine that evicts idle keys. Close stops it.
func NewRateLimiter(requestsPerMin int, burstCapacity int, logger *errors.Logger) *RateLimiter {
	m := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
		done:     make(chan struct{}),
		logger:   logger,
	}
	go m.cleanupRoutine(limiterCleanupInterval)
	return m
}

func (m *RateLimiter) limiter(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, exists := m.limiters[key]
	if !exists {
		l = rate.NewLimiter(m.rate, m.burst)
		m.limiters[key] = l
	}
	m.lastSeen[key] = time.Now()
	return l
}

// Allow reports whether a request for key may proceed now.
func (m *RateLimiter) Allow(key string) bool {
	if m.limiter(key).Allow() {
		return true
	}
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
	return false
}

// Stats returns current rate limiter statistics
func (m *RateLimiter) Stats() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	return map[string]any{
		"active_limiters":   len(m.limiters),
		"rate_per_minute":   float64(m.rate) * 60.0,
		"burst_capacity":    m.burst,
		"rejected_requests": m.rejected,
	}
}

func (m *RateLimiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle(limiterEvictionAge)
		case <-m.done:
			return
		}
	}
}

func (m *RateLimiter) evictIdle(age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, seen := range m.lastSeen {
		if now.Sub(seen) > age {
			delete(m.limiters, key)
			delete(m.lastSeen, key)
		}
	}
	if m.logger != nil {
		m.logger.Debug("Rate limiter cleanup completed", "remaining_limiters", len(m.limiters))
	}
}

// Close stops the cleanup goroutine.
func (m *RateLimiter) Close() {
	close(m.done)
}

// rateLimitMiddleware rejects requests over the per-key budget and counts
// each rejection in metrics, which may be nil.
func (s *Server) rateLimitMiddleware(metrics *observability.Metrics) func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimiter == nil || s.RateLimit == nil || !s.RateLimit.Enabled {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			if !s.RateLimiter.Allow(key) {
				s.Logger.Info("Rate limit exceeded",
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r))
				metrics.RecordRateLimitHit(r.Context(),
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
				s.writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}
	if byIP {
		return "ip:" + getClientIP(r)
	}
	return ""
}

// getClientIP prefers proxy headers over the connection address.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for ip := range strings.SplitSeq(xff, ",") {
			ip = strings.TrimSpace(ip)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
