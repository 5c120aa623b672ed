package tester

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
)

// Config holds session limits
type Config struct {
	IdleTimeout   time.Duration
	MaxSessions   int
	SweepInterval time.Duration
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{
		IdleTimeout:   15 * time.Minute,
		MaxSessions:   1000,
		SweepInterval: time.Minute,
	}
}

// Manager owns the open test sessions
type Manager struct {
	backend domain.Backend
	docs    domain.DocumentCache
	config  Config

	mu       sync.RWMutex
	sessions map[string]*Session
	expired  int64
	now      func() time.Time
}

// NewManager creates a session manager
func NewManager(backend domain.Backend, docs domain.DocumentCache, config Config) *Manager {
	defaults := DefaultConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = defaults.MaxSessions
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	return &Manager{
		backend:  backend,
		docs:     docs,
		config:   config,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Open loads the rule and starts a session for it
func (m *Manager) Open(ctx context.Context, ruleID int) (*Session, error) {
	var rule domain.Rule
	if err := m.backend.Get(ctx, domain.ResourceRules, ruleKey(ruleID), &rule); err != nil {
		return nil, err
	}
	return m.OpenWithRule(rule)
}

// OpenWithRule starts a session for a rule the caller already holds
func (m *Manager) OpenWithRule(rule domain.Rule) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.config.MaxSessions {
		m.sweepLocked()
		if len(m.sessions) >= m.config.MaxSessions {
			return nil, domain.NewAppError(domain.ErrRateLimit, "Too many open test sessions", 429, map[string]any{
				"max_sessions": m.config.MaxSessions,
			})
		}
	}

	session := newSession(uuid.NewString(), rule.Clone(), m.backend, m.docs, m.now)
	m.sessions[session.id] = session

	log.Debug().Str("session_id", session.id).Int("rule_id", rule.ID).Msg("Opened test session")
	return session, nil
}

// Get returns an open session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.NewAppError(domain.ErrNotFound, "Test session not found", 404, map[string]any{"session_id": id})
	}
	return session, nil
}

// Close ends a session and cancels its in-flight test
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return domain.NewAppError(domain.ErrNotFound, "Test session not found", 404, map[string]any{"session_id": id})
	}
	session.Close()
	log.Debug().Str("session_id", id).Msg("Closed test session")
	return nil
}

// Sweep closes sessions idle for longer than the idle timeout
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

func (m *Manager) sweepLocked() int {
	now := m.now()
	closed := 0
	for id, session := range m.sessions {
		if session.idleSince(now) > m.config.IdleTimeout {
			session.Close()
			delete(m.sessions, id)
			closed++
		}
	}
	m.expired += int64(closed)
	if closed > 0 {
		log.Info().Int("closed", closed).Int("open", len(m.sessions)).Msg("Expired idle test sessions")
	}
	return closed
}

// Run sweeps idle sessions until ctx is done
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// CloseAll closes every session, used on shutdown
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// HealthCheck reports session usage
func (m *Manager) HealthCheck(ctx context.Context) domain.HealthStatus {
	m.mu.RLock()
	open := len(m.sessions)
	running := 0
	for _, session := range m.sessions {
		if session.Running() {
			running++
		}
	}
	expired := m.expired
	m.mu.RUnlock()

	status := domain.HealthStatusHealthy
	message := "Test sessions are operating normally"
	if open >= int(float64(m.config.MaxSessions)*0.9) {
		status = domain.HealthStatusDegraded
		message = "Test sessions near capacity"
	}

	return domain.HealthStatus{
		Status:  status,
		Message: message,
		Details: map[string]any{
			"open":         open,
			"running":      running,
			"expired":      expired,
			"max_sessions": m.config.MaxSessions,
			"idle_timeout": m.config.IdleTimeout.String(),
		},
		Timestamp: m.now(),
	}
}
