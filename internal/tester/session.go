// Package tester runs rule tests on behalf of open test dialogs.
//
// A Session belongs to one dialog. It allows a single test in flight,
// keeps the last successful report, and drops any response that arrives
// after the dialog was closed.
package tester

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
)

// Outcome is what a test dialog shows after one run
type Outcome struct {
	DocumentID string             `json:"document_id"`
	Report     *domain.TestReport `json:"report"`
	Document   *domain.Document   `json:"document,omitempty"`
	Warnings   []string           `json:"warnings,omitempty"`
}

// Session is the state of one open test dialog
type Session struct {
	id      string
	rule    domain.Rule
	backend domain.Backend
	docs    domain.DocumentCache

	mu       sync.Mutex
	running  bool
	closed   bool
	cancel   context.CancelFunc
	last     *Outcome
	lastUsed time.Time
	now      func() time.Time
}

func newSession(id string, rule domain.Rule, backend domain.Backend, docs domain.DocumentCache, now func() time.Time) *Session {
	return &Session{
		id:       id,
		rule:     rule,
		backend:  backend,
		docs:     docs,
		lastUsed: now(),
		now:      now,
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Rule returns the rule snapshot the session interprets results against
func (s *Session) Rule() domain.Rule { return s.rule.Clone() }

// Run tests the rule against the probe document.
//
// An empty document id is a validation error. A second call while a test is
// running returns TEST_IN_FLIGHT without contacting the backend. Failures
// leave the previous report in place.
func (s *Session) Run(ctx context.Context, documentID string) (*Outcome, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, domain.NewAppError(domain.ErrValidationFailed, "Pick a document to test against", 422, map[string]any{
			"fields": []domain.FieldError{{Field: "document_id", Code: domain.FieldRequired, Message: "document_id is required"}},
		})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errSessionClosed(s.id)
	}
	if s.running {
		s.mu.Unlock()
		return nil, domain.NewAppError(domain.ErrTestInFlight, "A test is already running", 409, map[string]any{"session_id": s.id})
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.lastUsed = s.now()
	s.mu.Unlock()

	defer cancel()

	outcome := &Outcome{DocumentID: documentID}
	doc, err := s.resolveDocument(runCtx, documentID)
	if err != nil {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("document %s could not be loaded: %v", documentID, err))
	}
	outcome.Document = doc

	result, testErr := s.backend.TestRule(runCtx, s.rule.ID, domain.TestRuleRequest{DocumentID: documentID})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.cancel = nil
	s.lastUsed = s.now()

	if s.closed {
		log.Debug().Str("session_id", s.id).Msg("Discarding test response for closed session")
		return nil, errSessionClosed(s.id)
	}
	if testErr != nil {
		log.Warn().Err(testErr).Str("session_id", s.id).Int("rule_id", s.rule.ID).Msg("Rule test failed")
		return nil, testErr
	}

	report, err := domain.Interpret(&s.rule, result)
	if err != nil {
		// Shown as a degraded report with the raw log
		outcome.Warnings = append(outcome.Warnings, err.Error())
		log.Warn().Err(err).Str("session_id", s.id).Int("rule_id", s.rule.ID).Msg("Test result does not line up with the rule")
	}
	outcome.Report = report
	s.last = outcome
	return outcome, nil
}

func (s *Session) resolveDocument(ctx context.Context, id string) (*domain.Document, error) {
	return ResolveDocument(ctx, s.backend, s.docs, id)
}

// ResolveDocument loads a test document through the cache; docs may be nil.
// A cached copy can be up to the cache TTL old.
func ResolveDocument(ctx context.Context, backend domain.DataProvider, docs domain.DocumentCache, id string) (*domain.Document, error) {
	if docs != nil {
		if doc, ok := docs.Get(id); ok {
			return doc, nil
		}
	}
	return RefreshDocument(ctx, backend, docs, id)
}

// RefreshDocument always loads the document from the backend and
// replaces the cached copy; docs may be nil
func RefreshDocument(ctx context.Context, backend domain.DataProvider, docs domain.DocumentCache, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := backend.Get(ctx, domain.ResourceDocuments, id, &doc); err != nil {
		return nil, err
	}
	if docs != nil {
		docs.Set(id, &doc)
	}
	return &doc, nil
}

// Last returns the last successful outcome, or nil
func (s *Session) Last() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = s.now()
	return s.last
}

// Running reports whether a test is in flight
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Close cancels any in-flight test; its response will be discarded
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) idleSince(t time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return 0
	}
	return t.Sub(s.lastUsed)
}

func errSessionClosed(id string) error {
	return domain.NewAppError(domain.ErrSessionClosed, "The test dialog was closed", 410, map[string]any{"session_id": id})
}

func ruleKey(id int) string {
	return strconv.Itoa(id)
}
