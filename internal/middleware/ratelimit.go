package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimiter hands out token buckets keyed by client IP and route.
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows maxRequests per window with bursts up to maxRequests.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	limit := rate.Inf
	if maxRequests > 0 && window > 0 {
		limit = rate.Every(window / time.Duration(maxRequests))
	}
	return &RateLimiter{
		buckets:   make(map[string]*bucket),
		limit:     limit,
		burst:     max(maxRequests, 1),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *RateLimiter) reserve(key string) (allowed bool, retryAfter time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > limiterIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests beyond the configured rate with a 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit == rate.Inf {
			c.Next()
			return
		}

		allowed, retryAfter := l.reserve(c.ClientIP() + "|" + c.FullPath())
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.burst))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			response.Error(c, apperrors.ErrRateLimit)
			return
		}
		c.Next()
	}
}

// RateLimit is shorthand for NewRateLimiter(maxRequests, window).Middleware().
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	return NewRateLimiter(maxRequests, window).Middleware()
}
