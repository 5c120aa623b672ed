package health

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/virtualpaper/console/internal/domain"
)

// Component is anything that can report its own health
type Component interface {
	HealthCheck(ctx context.Context) domain.HealthStatus
}

// Component names reported by the checker
const (
	ComponentBackend  = "backend"
	ComponentCache    = "cache"
	ComponentSessions = "sessions"
)

// SystemHealthChecker aggregates the health of the console's dependencies
type SystemHealthChecker struct {
	components map[string]Component
	cache      domain.DocumentCache

	timeout   time.Duration
	startTime time.Time

	// Cached health status to avoid hitting the backend on every request
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a new system health checker
func NewSystemHealthChecker(backend Component, cache domain.DocumentCache, sessions Component) *SystemHealthChecker {
	components := map[string]Component{
		ComponentBackend:  backend,
		ComponentCache:    cache,
		ComponentSessions: sessions,
	}
	return &SystemHealthChecker{
		components: components,
		cache:      cache,
		timeout:    5 * time.Second,
		cacheTTL:   10 * time.Second,
		startTime:  time.Now(),
	}
}

// SetCacheTTL changes how long a system check is reused; zero disables reuse
func (h *SystemHealthChecker) SetCacheTTL(ttl time.Duration) {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()
	h.cacheTTL = ttl
	h.lastCheck = time.Time{}
}

// CheckHealth checks every component concurrently
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	if h.cacheTTL > 0 && !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]domain.HealthStatus, len(h.components))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, component := range h.components {
		if component == nil {
			continue
		}
		wg.Add(1)
		go func(name string, component Component) {
			defer wg.Done()
			status := component.HealthCheck(checkCtx)
			mu.Lock()
			components[name] = status
			mu.Unlock()
		}(name, component)
	}
	wg.Wait()

	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	overallStatus := domain.HealthStatusHealthy
	for _, name := range names {
		overallStatus = aggregateStatus(overallStatus, components[name].Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
		Metrics:    h.collectSystemMetrics(),
		Uptime:     time.Since(h.startTime),
	}

	h.lastCheck = now
	h.lastHealth = systemHealth
	return systemHealth
}

// CheckComponent performs a health check on a specific component
func (h *SystemHealthChecker) CheckComponent(ctx context.Context, name string) domain.HealthStatus {
	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	component, ok := h.components[name]
	if !ok || component == nil {
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Unknown component",
			Timestamp: time.Now(),
			Details: map[string]any{
				"component": name,
				"error":     "Component not found",
			},
		}
	}
	return component.HealthCheck(checkCtx)
}

// aggregateStatus keeps the worse of two statuses: unhealthy > degraded > healthy
func aggregateStatus(current, componentStatus string) string {
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	componentPriority, known := statusPriority[componentStatus]
	if !known {
		componentPriority = statusPriority[domain.HealthStatusUnhealthy]
		componentStatus = domain.HealthStatusUnhealthy
	}
	if componentPriority > statusPriority[current] {
		return componentStatus
	}
	return current
}

func (h *SystemHealthChecker) collectSystemMetrics() map[string]any {
	metrics := make(map[string]any)

	if h.cache != nil {
		stats := h.cache.Stats()
		metrics["cache"] = map[string]any{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"size":      stats.Size,
			"max_size":  stats.MaxSize,
			"hit_ratio": stats.HitRatio,
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	metrics["system"] = map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"goroutines":     runtime.NumGoroutine(),
		"heap_alloc":     mem.HeapAlloc,
	}

	return metrics
}

// IsHealthy returns true if the system is healthy
func (h *SystemHealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == domain.HealthStatusHealthy
}
