package middleware

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/virtualpaper/console/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity   int
	tokens     float64 // Use float for precise refill
	refillRate int     // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   max(capacity, 1),
		tokens:     float64(max(capacity, 1)),
		refillRate: max(refillRate, 1),
		lastRefill: time.Now(),
	}
}

// Allow takes a token if one is available and reports what is left
func (tb *TokenBucket) Allow() (bool, int) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(math.Floor(tb.tokens))
	}
	return false, 0
}

// retryAfter is the number of seconds until one token is back
func (tb *TokenBucket) retryAfter() int {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	missing := 1 - tb.tokens
	return max(int(math.Ceil(missing/float64(tb.refillRate))), 1)
}

// Endpoint classes share one bucket per client
const (
	ClassRead   = "read"
	ClassWrite  = "write"
	ClassTest   = "test"
	ClassHealth = "health"
)

type limit struct {
	capacity   int
	refillRate int
}

// RateLimiter manages rate limiting per client and endpoint class
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex

	defaultCapacity   int
	defaultRefillRate int

	classLimits map[string]limit
}

// NewRateLimiter creates a new rate limiter with configurable parameters
func NewRateLimiter(rps, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets:           make(map[string]*TokenBucket),
		defaultCapacity:   burst,
		defaultRefillRate: rps,
		classLimits:       make(map[string]limit),
	}

	rl.classLimits[ClassRead] = limit{burst, rps}
	rl.classLimits[ClassWrite] = limit{burst / 2, rps / 2}
	rl.classLimits[ClassTest] = limit{burst / 4, rps / 4}
	rl.classLimits[ClassHealth] = limit{20, 2}

	return rl
}

// classify maps a request onto its endpoint class
func classify(method, path string) string {
	switch {
	case path == "/health" || path == "/metrics":
		return ClassHealth
	case strings.HasSuffix(path, "/test") || strings.HasSuffix(path, "/run") || strings.HasSuffix(path, "/preview"):
		return ClassTest
	case method == fiber.MethodGet || method == fiber.MethodHead:
		return ClassRead
	case strings.HasSuffix(path, "/validate") || strings.HasSuffix(path, "/editor"):
		// no backend call
		return ClassRead
	}
	return ClassWrite
}

// getBucket gets or creates a token bucket for a client+class combination
func (rl *RateLimiter) getBucket(clientID, class string) *TokenBucket {
	key := clientID + ":" + class

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()
	if exists {
		return bucket
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	l, exists := rl.classLimits[class]
	if !exists {
		l = limit{rl.defaultCapacity, rl.defaultRefillRate}
	}
	bucket = NewTokenBucket(l.capacity, l.refillRate)
	rl.buckets[key] = bucket
	return bucket
}

// getClientID extracts client identifier from request
func (rl *RateLimiter) getClientID(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); auth != "" {
		return "auth:" + auth
	}
	return "ip:" + c.IP()
}

// Middleware returns a Fiber middleware for rate limiting
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		class := classify(c.Method(), c.Path())
		bucket := rl.getBucket(rl.getClientID(c), class)

		c.Set("X-RateLimit-Limit", strconv.Itoa(bucket.capacity))

		allowed, remaining := bucket.Allow()
		if !allowed {
			retry := bucket.retryAfter()
			appErr := domain.NewAppError(
				domain.ErrRateLimit,
				"Rate limit exceeded",
				fiber.StatusTooManyRequests,
				map[string]any{
					"endpoint_class": class,
					"retry_after":    retry,
				},
			).WithContext(c.UserContext(), "rate_limit")

			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			c.Set("X-RateLimit-Remaining", "0")

			body := map[string]any{
				"status":  "error",
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			}
			if appErr.RequestID != "" {
				body["request_id"] = appErr.RequestID
			}
			return c.Status(appErr.StatusCode).JSON(body)
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		return c.Next()
	}
}

// CleanupOldBuckets removes unused buckets to prevent memory leaks
func (rl *RateLimiter) CleanupOldBuckets(idle time.Duration) int {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		unused := now.Sub(bucket.lastRefill)
		bucket.mutex.Unlock()
		if unused > idle {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine starts a background routine to clean up old buckets
// Returns a stop function to cancel the routine
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets(time.Hour)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	limits := make(map[string]any, len(rl.classLimits))
	for class, l := range rl.classLimits {
		limits[class] = map[string]int{"capacity": l.capacity, "refill_rate": l.refillRate}
	}

	return map[string]any{
		"active_buckets":      len(rl.buckets),
		"default_capacity":    rl.defaultCapacity,
		"default_refill_rate": rl.defaultRefillRate,
		"class_limits":        limits,
	}
}
