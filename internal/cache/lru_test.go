package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/virtualpaper/console/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDoc(id string) *domain.Document {
	return &domain.Document{
		ID:      id,
		Name:    "Invoice " + id,
		Content: "total 12.00",
		Metadata: []domain.DocumentMetadata{
			{KeyID: 3, ValueID: 7, Key: "category", Value: "invoices"},
		},
	}
}

func TestNewLRUCache(t *testing.T) {
	cache := NewLRUCache(100, time.Minute)
	assert.Equal(t, 100, cache.maxSize)
	assert.Equal(t, 0, cache.size)
	assert.Equal(t, time.Minute, cache.ttl)
	assert.Equal(t, cache.tail, cache.head.next)
	assert.Equal(t, cache.head, cache.tail.prev)
}

func TestNewLRUCache_DefaultSize(t *testing.T) {
	cache := NewLRUCache(0, 0)
	assert.Equal(t, DefaultMaxSize, cache.maxSize)
}

func TestLRUCache_SetAndGet(t *testing.T) {
	cache := NewLRUCache(2, 0)

	value, found := cache.Get("doc-1")
	assert.False(t, found)
	assert.Nil(t, value)

	cache.Set("doc-1", testDoc("doc-1"))
	value, found = cache.Get("doc-1")
	require.True(t, found)
	assert.Equal(t, "Invoice doc-1", value.Name)
	assert.Equal(t, 3, value.Metadata[0].KeyID)
}

func TestLRUCache_ReturnsCopies(t *testing.T) {
	cache := NewLRUCache(2, 0)
	doc := testDoc("doc-1")
	cache.Set("doc-1", doc)

	doc.Name = "changed after set"
	got, _ := cache.Get("doc-1")
	got.Metadata[0].Value = "changed after get"

	again, _ := cache.Get("doc-1")
	assert.Equal(t, "Invoice doc-1", again.Name)
	assert.Equal(t, "invoices", again.Metadata[0].Value)
}

func TestLRUCache_SetNilIsIgnored(t *testing.T) {
	cache := NewLRUCache(2, 0)
	cache.Set("doc-1", nil)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestLRUCache_Eviction(t *testing.T) {
	cache := NewLRUCache(2, 0)

	cache.Set("doc-1", testDoc("doc-1"))
	cache.Set("doc-2", testDoc("doc-2"))
	cache.Get("doc-1")
	cache.Set("doc-3", testDoc("doc-3"))

	_, found1 := cache.Get("doc-1")
	_, found2 := cache.Get("doc-2")
	_, found3 := cache.Get("doc-3")

	assert.True(t, found1)
	assert.False(t, found2) // Least recently used
	assert.True(t, found3)
	assert.Equal(t, int64(1), cache.evictions)
}

func TestLRUCache_Update(t *testing.T) {
	cache := NewLRUCache(2, 0)

	cache.Set("doc-1", testDoc("doc-1"))
	updated := testDoc("doc-1")
	updated.Name = "Renamed"
	cache.Set("doc-1", updated)

	value, found := cache.Get("doc-1")
	require.True(t, found)
	assert.Equal(t, "Renamed", value.Name)
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestLRUCache_TTL(t *testing.T) {
	cache := NewLRUCache(10, time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.Set("doc-1", testDoc("doc-1"))

	now = now.Add(59 * time.Second)
	_, found := cache.Get("doc-1")
	assert.True(t, found)

	now = now.Add(time.Second)
	_, found = cache.Get("doc-1")
	assert.False(t, found)
	assert.Equal(t, 0, cache.Stats().Size)
	assert.Equal(t, int64(1), cache.expired)
}

func TestLRUCache_InvalidateAndClear(t *testing.T) {
	cache := NewLRUCache(10, 0)
	cache.Set("doc-1", testDoc("doc-1"))
	cache.Set("doc-2", testDoc("doc-2"))

	cache.Invalidate("doc-1")
	cache.Invalidate("missing")
	_, found := cache.Get("doc-1")
	assert.False(t, found)
	assert.Equal(t, 1, cache.Stats().Size)

	cache.Clear()
	stats := cache.Stats()
	assert.Equal(t, 0, stats.Size)
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestLRUCache_Stats(t *testing.T) {
	cache := NewLRUCache(10, 0)
	cache.Set("doc-1", testDoc("doc-1"))

	cache.Get("doc-1")
	cache.Get("doc-1")
	cache.Get("doc-2")

	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRatio, 0.0001)
	assert.Equal(t, 10, stats.MaxSize)
}

func TestLRUCache_HealthCheck(t *testing.T) {
	cache := NewLRUCache(10, 0)
	health := cache.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)

	for i := 0; i < 9; i++ {
		cache.Set(fmt.Sprintf("doc-%d", i), testDoc("x"))
	}
	health = cache.HealthCheck(context.Background())
	assert.Equal(t, domain.HealthStatusDegraded, health.Status)
	assert.Contains(t, health.Details, "warning")
}

func TestProperty_LRUCacheSizeLimits(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("cache never exceeds maximum size", prop.ForAll(
		func(maxSize int, numOperations int) bool {
			cache := NewLRUCache(maxSize, 0)

			for i := 0; i < numOperations; i++ {
				key := fmt.Sprintf("doc-%d", i)
				cache.Set(key, testDoc(key))
				if cache.Stats().Size > maxSize {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 100),
		gen.IntRange(0, 200),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_MostRecentWriteWins(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a hit returns the last document stored under the key", prop.ForAll(
		func(keys []string) bool {
			cache := NewLRUCache(len(keys)+1, 0)
			last := make(map[string]string)

			for i, key := range keys {
				doc := testDoc(key)
				doc.Name = fmt.Sprintf("name-%d", i)
				cache.Set(key, doc)
				last[key] = doc.Name
			}

			for key, name := range last {
				got, found := cache.Get(key)
				if !found || got.Name != name {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.IntRange(0, 4).Map(func(i int) string {
			return fmt.Sprintf("doc-%d", i)
		})),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_InvalidatedKeysMiss(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("invalidated keys are never returned", prop.ForAll(
		func(keys []string) bool {
			cache := NewLRUCache(100, 0)
			for _, key := range keys {
				cache.Set(key, testDoc(key))
			}
			for _, key := range keys {
				cache.Invalidate(key)
				if _, found := cache.Get(key); found {
					return false
				}
			}
			return cache.Stats().Size == 0
		},
		gen.SliceOfN(10, gen.AlphaString()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
