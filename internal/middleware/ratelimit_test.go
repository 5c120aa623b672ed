package middleware

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	bucket := NewTokenBucket(2, 1)

	ok, remaining := bucket.Allow()
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)
	ok, _ = bucket.Allow()
	assert.True(t, ok)
	ok, _ = bucket.Allow()
	assert.False(t, ok)
	assert.Equal(t, 1, bucket.retryAfter())
}

func TestNewTokenBucket_MinimumLimits(t *testing.T) {
	bucket := NewTokenBucket(0, 0)
	assert.Equal(t, 1, bucket.capacity)
	assert.Equal(t, 1, bucket.refillRate)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{fiber.MethodGet, "/health", ClassHealth},
		{fiber.MethodGet, "/v1/rules", ClassRead},
		{fiber.MethodGet, "/v1/rules/3", ClassRead},
		{fiber.MethodPost, "/v1/rules", ClassWrite},
		{fiber.MethodPut, "/v1/rules/reorder", ClassWrite},
		{fiber.MethodDelete, "/v1/rules/3", ClassWrite},
		{fiber.MethodPost, "/v1/rules/3/test", ClassTest},
		{fiber.MethodPost, "/v1/test-sessions/abc/run", ClassTest},
		{fiber.MethodPost, "/v1/rules/preview", ClassTest},
		{fiber.MethodPost, "/v1/rules/validate", ClassRead},
		{fiber.MethodPost, "/v1/rules/editor", ClassRead},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.method, tt.path))
		})
	}
}

func TestMiddleware_RejectsAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(4, 8)
	app := fiber.New()
	app.Use(limiter.Middleware())
	app.Post("/v1/rules/:id/test", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/v1/rules", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	// The test class gets a quarter of the burst
	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/v1/rules/1/test", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/v1/rules/2/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "RATE_LIMIT", body["code"])

	// Reads use their own bucket
	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/v1/rules", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "8", resp.Header.Get("X-RateLimit-Limit"))
}

func TestCleanupOldBuckets(t *testing.T) {
	limiter := NewRateLimiter(10, 10)
	limiter.getBucket("ip:1", ClassRead)
	stale := limiter.getBucket("ip:2", ClassRead)
	stale.lastRefill = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, limiter.CleanupOldBuckets(time.Hour))
	assert.Equal(t, 1, limiter.GetStats()["active_buckets"])
}
