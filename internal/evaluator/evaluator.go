// Package evaluator runs a rule against a document locally.
//
// The Virtualpaper server remains the authority on rule evaluation. This
// package mirrors its gate so drafts can be previewed before they are saved:
//
//   - every condition is evaluated, disabled and unsupported ones are reported
//     as skipped
//   - match_all needs every evaluated condition to match and is vacuously true
//     when none are enabled, match_any needs at least one
//   - actions run in order when enabled and the rule outcome equals
//     on_condition, each one mutating a copy of the document
//
// Results are index-aligned with the rule, so they can be fed straight into
// domain.Interpret.
package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
)

// Evaluator evaluates rules against documents
type Evaluator struct {
	now func() time.Time
}

// New creates an evaluator using the wall clock
func New() *Evaluator {
	return &Evaluator{now: time.Now}
}

// Outcome is the evaluation result plus the document as the actions left it
type Outcome struct {
	Result   *domain.RuleTestResult `json:"result"`
	Document *domain.Document       `json:"document"`
}

// Evaluate runs rule against doc. doc is not modified.
func (e *Evaluator) Evaluate(rule *domain.Rule, doc *domain.Document) (*Outcome, error) {
	if rule == nil {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "Rule is required", 400, map[string]any{"field": "rule"})
	}
	if doc == nil {
		return nil, domain.NewAppError(domain.ErrInvalidInput, "Document is required", 400, map[string]any{"field": "document"})
	}

	started := e.now()
	logLines := []string{fmt.Sprintf("evaluating rule %q against document %q", rule.Name, doc.ID)}

	result := &domain.RuleTestResult{
		RuleID:          rule.ID,
		StartedAt:       started,
		Conditions:      make([]domain.ConditionResult, len(rule.Conditions)),
		Actions:         make([]domain.ActionResult, len(rule.Actions)),
		ConditionOutput: make([][]string, len(rule.Conditions)),
		ActionOutput:    make([][]string, len(rule.Actions)),
	}

	evaluated, matchedCount := 0, 0
	for i, c := range rule.Conditions {
		cr := domain.ConditionResult{ConditionID: c.ID, ConditionType: c.ConditionType}

		switch {
		case !c.Enabled:
			cr.Skipped = true
			result.ConditionOutput[i] = []string{"condition is disabled"}
		case !c.ConditionType.Supported():
			cr.Skipped = true
			result.ConditionOutput[i] = []string{fmt.Sprintf("unsupported condition type %q", c.ConditionType)}
		default:
			matched, output := matchCondition(c, doc)
			if c.Inverted {
				matched = !matched
				output = append(output, "inverted")
			}
			cr.Matched = matched
			result.ConditionOutput[i] = output
			evaluated++
			if matched {
				matchedCount++
			}
		}

		result.Conditions[i] = cr
		logLines = append(logLines, fmt.Sprintf("condition %d (%s): %s", i+1, c.ConditionType, domain.InterpretCondition(cr)))
	}

	switch rule.Mode {
	case domain.MatchAny:
		result.Matched = matchedCount > 0
	default:
		result.Matched = matchedCount == evaluated
	}
	logLines = append(logLines, fmt.Sprintf("rule matched: %t (%s, %d/%d conditions)", result.Matched, modeOrDefault(rule.Mode), matchedCount, evaluated))

	out := doc.Clone()
	for i, a := range rule.Actions {
		ar := domain.ActionResult{ActionID: a.ID, ActionType: a.Action}

		switch {
		case !a.Enabled:
			ar.Skipped = true
			result.ActionOutput[i] = []string{"action is disabled"}
		case result.Matched != a.OnCondition:
			ar.Skipped = true
			result.ActionOutput[i] = []string{fmt.Sprintf("runs when the rule matched is %t", a.OnCondition)}
		case !a.Action.Supported():
			ar.Skipped = true
			result.ActionOutput[i] = []string{fmt.Sprintf("unsupported action type %q", a.Action)}
		default:
			output, err := applyAction(a, out)
			if err != nil {
				ar.Skipped = true
				output = []string{err.Error()}
				result.Error = fmt.Sprintf("action %d: %s", i+1, err)
			}
			result.ActionOutput[i] = output
		}

		result.Actions[i] = ar
		logLines = append(logLines, fmt.Sprintf("action %d (%s): %s", i+1, a.Action, domain.InterpretAction(ar, result.Matched, a.OnCondition)))
	}

	result.StoppedAt = e.now()
	result.TookMs = result.StoppedAt.Sub(started).Milliseconds()
	result.Log = strings.Join(logLines, "\n")

	log.Debug().
		Int("rule_id", rule.ID).
		Str("document_id", doc.ID).
		Bool("matched", result.Matched).
		Int64("took_ms", result.TookMs).
		Msg("Evaluated rule locally")

	return &Outcome{Result: result, Document: out}, nil
}

func modeOrDefault(mode domain.MatchMode) domain.MatchMode {
	if mode == "" {
		return domain.MatchAll
	}
	return mode
}
