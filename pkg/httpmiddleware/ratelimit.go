package httpmiddleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per window.
	Max int
	// Window is the length of a window.
	Window time.Duration
	// KeyFunc buckets requests. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests in the current and the previous fixed window.
// The estimate for a sliding window weights the previous count by how much
// of it still overlaps.
type window struct {
	start time.Time
	curr  float64
	prev  float64
}

type rateLimiter struct {
	max    int
	size   time.Duration
	keyFor func(*http.Request) string

	mu      sync.Mutex
	windows *cache.Cache
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &rateLimiter{
		max:    cfg.Max,
		size:   cfg.Window,
		keyFor: cfg.KeyFunc,
		// Idle keys expire once both tracked windows are over.
		windows: cache.New(2*cfg.Window, 2*cfg.Window),
	}
}

// allow records a request for key at now unless the key is over its limit.
func (rl *rateLimiter) allow(key string, now time.Time) (remaining int, resetAt time.Time, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w := &window{start: now.Truncate(rl.size)}
	if v, found := rl.windows.Get(key); found {
		w = v.(*window)
	}
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*rl.size:
		*w = window{start: now.Truncate(rl.size)}
	case elapsed >= rl.size:
		*w = window{start: w.start.Add(rl.size), prev: w.curr}
	}
	rl.windows.SetDefault(key, w)

	overlap := max(0, 1-now.Sub(w.start).Seconds()/rl.size.Seconds())
	count := w.prev*overlap + w.curr
	resetAt = w.start.Add(rl.size)
	if count >= float64(rl.max) {
		return 0, resetAt, false
	}
	w.curr++
	return max(0, int(float64(rl.max)-count-1)), resetAt, true
}

// RateLimit enforces a per-key sliding window limit. Every response carries
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset; rejected
// requests get 429 with Retry-After and a failure envelope.
func RateLimit(cfg RateLimitConfig) Middleware {
	rl := newRateLimiter(cfg)
	limit := strconv.Itoa(cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remaining, resetAt, ok := rl.allow(rl.keyFor(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			if !ok {
				wait := max(0, time.Until(resetAt))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the host of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
