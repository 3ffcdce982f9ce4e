package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/soulsalutte/clinic/internal/platform/auth"
)

// RateLimitConfig sizes the per-client token buckets.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops a client's bucket once it has been unused this long.
	IdleTTL time.Duration
	// KeyFunc picks the bucket for a request. Nil means ClientKey.
	KeyFunc func(c echo.Context) string
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

// ClientKey buckets authenticated requests by token subject, so staff
// behind one clinic NAT do not share a budget. Anything else is keyed by
// client IP.
func ClientKey(c echo.Context) string {
	if c.Request().Header.Get(echo.HeaderAuthorization) != "" {
		if sub := auth.UserIDFromContext(c.Request().Context()); sub != "" {
			return "sub:" + sub
		}
	}
	return "ip:" + c.RealIP()
}

type bucket struct {
	tokens float64
	seen   time.Time
}

type limiter struct {
	mu        sync.Mutex
	rate      float64
	burst     float64
	idleTTL   time.Duration
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

func newLimiter(cfg RateLimitConfig, now func() time.Time) *limiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &limiter{
		rate:      cfg.RequestsPerSecond,
		burst:     float64(cfg.BurstSize),
		idleTTL:   cfg.IdleTTL,
		buckets:   make(map[string]*bucket),
		lastSweep: now(),
		now:       now,
	}
}

// take spends one token from key's bucket. When none is left it reports how
// many whole seconds until one is.
func (l *limiter) take(key string) (ok bool, remaining, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, found := l.buckets[key]
	if !found {
		b = &bucket{tokens: l.burst, seen: now}
		l.buckets[key] = b
	}
	b.tokens = math.Min(l.burst, b.tokens+now.Sub(b.seen).Seconds()*l.rate)
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	if l.rate <= 0 {
		return false, 0, 1
	}
	return false, 0, int(math.Ceil((1-b.tokens)/l.rate))
}

// sweep forgets buckets idle for idleTTL. It runs at most once per idleTTL.
func (l *limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.seen) >= l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastSweep = now
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 with Retry-After once a client has spent its burst.
// It must run after the auth middleware for subject keying to apply.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(cfg, newLimiter(cfg, time.Now))
}

func rateLimit(cfg RateLimitConfig, l *limiter) echo.MiddlewareFunc {
	keyOf := cfg.KeyFunc
	if keyOf == nil {
		keyOf = ClientKey
	}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ok, remaining, retryAfter := l.take(keyOf(c))
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
