package server

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"resumeform/internal/errors"

	"golang.org/x/time/rate"
)

// clientBucket is the token bucket of one client key
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key ("ip:..." or "api:...").
type RateLimiter struct {
	mu       sync.Mutex
	buckets   map[string]*clientBucket
	rejected  map[string]int64 // by key type
	limit     rate.Limit
	perMinute int
	burst     int
	idleTTL   time.Duration

	done      chan struct{}
	closeOnce sync.Once
	logger    *errors.Logger
}

// NewRateLimiter creates a limiter refilling requestsPerMin tokens a minute
// into buckets of burstCapacity. A non-positive rate disables limiting.
func NewRateLimiter(requestsPerMin int, burstCapacity int, logger *errors.Logger) *RateLimiter {
	if logger == nil {
		logger = errors.Discard()
	}
	burstCapacity = max(burstCapacity, 1)

	limit := rate.Inf
	idleTTL := time.Minute
	if requestsPerMin > 0 {
		limit = rate.Limit(float64(requestsPerMin) / 60.0)
		// a bucket idle this long has refilled and carries no state
		refill := time.Duration(float64(burstCapacity) / float64(limit) * float64(time.Second))
		idleTTL = max(refill, time.Minute)
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*clientBucket),
		rejected: make(map[string]int64),
		limit:     limit,
		perMinute: max(requestsPerMin, 0),
		burst:     burstCapacity,
		idleTTL:   idleTTL,
		done:      make(chan struct{}),
		logger:    logger,
	}

	go rl.cleanupRoutine(min(idleTTL, 10*time.Minute))
	return rl
}

// Allow takes a token for key. When the bucket is empty it reports false and
// how long the client should wait before a token is available.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	if r.OK() && delay == 0 {
		return true, 0
	}
	r.CancelAt(now)

	keyType, _, _ := strings.Cut(key, ":")
	rl.mu.Lock()
	rl.rejected[keyType]++
	rl.mu.Unlock()
	return false, delay
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rejected := make(map[string]int64, len(rl.rejected))
	for k, v := range rl.rejected {
		rejected[k] = v
	}

	return map[string]any{
		"tracked_clients":     len(rl.buckets),
		"requests_per_minute": rl.perMinute,
		"burst_capacity":      rl.burst,
		"idle_ttl":            rl.idleTTL.String(),
		"rejected":            rejected,
	}
}

func (rl *RateLimiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := rl.evictIdle(now); n > 0 {
				rl.logger.Debug("Evicted idle rate limit buckets", "evicted", n)
			}
		case <-rl.done:
			return
		}
	}
}

// evictIdle drops buckets unused for longer than idleTTL and returns how many went
func (rl *RateLimiter) evictIdle(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.idleTTL {
			delete(rl.buckets, key)
			evicted++
		}
	}
	return evicted
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// rateLimitMiddleware creates rate limiting middleware using golang.org/x/time/rate.
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rateLimitKey := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if rateLimitKey == "" {
				next(w, r)
				return
			}

			allowed, retryAfter := s.RateLimiter.Allow(rateLimitKey)
			if !allowed {
				limiterType, _, _ := strings.Cut(rateLimitKey, ":")
				s.om.GetMetrics().RecordRateLimitHit(r.Context(), limiterType)
				s.Logger.Info("Rate limit exceeded",
					"limiter", limiterType,
					"endpoint", r.URL.Path,
					"client_ip", getClientIP(r),
					"retry_after", retryAfter)
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				}
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// Helper to consolidate key extraction logic
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := extractAPIKey(r); apiKey != "" {
			return "api:" + apiKey
		}
	}

	if byIP {
		return "ip:" + getClientIP(r)
	}

	return ""
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first IP in the list
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP parses the first valid IP from a comma-separated list
func parseFirstIP(ips string) string {
	// Split by comma and check each IP
	for _, ip := range strings.Split(ips, ",") {
		ip = strings.TrimSpace(ip)
		if parsed := net.ParseIP(ip); parsed != nil {
			return ip
		}
	}
	return ""
}
