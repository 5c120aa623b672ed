package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConditionResult is the server's verdict for one condition
type ConditionResult struct {
	ConditionID   int           `json:"condition_id"`
	ConditionType ConditionType `json:"condition_type"`
	Matched       bool          `json:"matched"`
	Skipped       bool          `json:"skipped"`
}

// ActionResult is the server's verdict for one action
type ActionResult struct {
	ActionID   int        `json:"action_id"`
	ActionType ActionType `json:"action_type"`
	Skipped    bool       `json:"skipped"`
}

// RuleTestResult is what one test invocation returns. It is never persisted.
type RuleTestResult struct {
	RuleID          int               `json:"rule_id"`
	Matched         bool              `json:"matched"`
	TookMs          int64             `json:"took_ms"`
	StartedAt       time.Time         `json:"started_at"`
	StoppedAt       time.Time         `json:"stopped_at"`
	Error           string            `json:"error"`
	Log             string            `json:"log"`
	Conditions      []ConditionResult `json:"conditions"`
	Actions         []ActionResult    `json:"actions"`
	ConditionOutput [][]string        `json:"condition_output"`
	ActionOutput    [][]string        `json:"action_output"`
}

// TestRuleRequest is the body of a test invocation
type TestRuleRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
}

// ConditionState is how a condition row is displayed after a test
type ConditionState string

const (
	ConditionSkipped    ConditionState = "skipped"
	ConditionMatched    ConditionState = "matched"
	ConditionNotMatched ConditionState = "not-matched"
)

// ActionState is how an action row is displayed after a test
type ActionState string

const (
	ActionSkipped      ActionState = "skipped"
	ActionWouldExecute ActionState = "would-execute"
)

// InterpretCondition maps a condition result to its display state. Skip wins over match.
func InterpretCondition(cr ConditionResult) ConditionState {
	switch {
	case cr.Skipped:
		return ConditionSkipped
	case cr.Matched:
		return ConditionMatched
	default:
		return ConditionNotMatched
	}
}

// InterpretAction applies the same gate the server uses: an action runs only
// when it is not skipped and the rule outcome equals its on_condition branch.
func InterpretAction(ar ActionResult, ruleMatched, onCondition bool) ActionState {
	if ar.Skipped || ruleMatched != onCondition {
		return ActionSkipped
	}
	return ActionWouldExecute
}

// ConditionRow is one condition zipped with its result and log lines
type ConditionRow struct {
	Index       int             `json:"index"`
	Condition   Condition       `json:"condition"`
	Result      ConditionResult `json:"result"`
	State       ConditionState  `json:"state"`
	Output      []string        `json:"output"`
	Unsupported bool            `json:"unsupported,omitempty"`
}

// ActionRow is one action zipped with its result and log lines
type ActionRow struct {
	Index       int          `json:"index"`
	Action      Action       `json:"action"`
	Result      ActionResult `json:"result"`
	State       ActionState  `json:"state"`
	Output      []string     `json:"output"`
	Unsupported bool         `json:"unsupported,omitempty"`
}

// TestReport is a test result prepared for display. When Degraded is set only
// Log is meaningful.
type TestReport struct {
	RuleID     int            `json:"rule_id"`
	Matched    bool           `json:"matched"`
	TookMs     int64          `json:"took_ms"`
	StartedAt  time.Time      `json:"started_at"`
	StoppedAt  time.Time      `json:"stopped_at"`
	Error      string         `json:"error,omitempty"`
	Log        string         `json:"log"`
	Degraded   bool           `json:"degraded"`
	Conditions []ConditionRow `json:"conditions,omitempty"`
	Actions    []ActionRow    `json:"actions,omitempty"`
}

// LogLines splits the flat log into lines, dropping a trailing empty line
func (r *TestReport) LogLines() []string {
	if r.Log == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(r.Log, "\n"), "\n")
}

// Interpret zips a test result with the rule it was produced for. Rows are
// matched strictly by position; if any of the result arrays disagrees in
// length with the rule, the returned report is degraded to the raw log and
// the error is MALFORMED_TEST_RESULT. The report is never nil.
func Interpret(rule *Rule, result *RuleTestResult) (*TestReport, error) {
	report := &TestReport{}
	if result == nil {
		report.Degraded = true
		return report, NewAppError(ErrMalformedTestResult, "Empty test result", 502, nil)
	}

	report.RuleID = result.RuleID
	report.Matched = result.Matched
	report.TookMs = result.TookMs
	report.StartedAt = result.StartedAt
	report.StoppedAt = result.StoppedAt
	report.Error = result.Error
	report.Log = result.Log

	if rule == nil {
		report.Degraded = true
		return report, NewAppError(ErrMalformedTestResult, "Test result has no rule to align with", 502, nil)
	}

	if mismatch := lengthMismatch(rule, result); mismatch != nil {
		report.Degraded = true
		return report, NewAppError(ErrMalformedTestResult, "Test result does not line up with the rule", 502, mismatch)
	}

	report.Conditions = make([]ConditionRow, len(rule.Conditions))
	for i, c := range rule.Conditions {
		cr := result.Conditions[i]
		report.Conditions[i] = ConditionRow{
			Index:       i,
			Condition:   c,
			Result:      cr,
			State:       InterpretCondition(cr),
			Output:      result.ConditionOutput[i],
			Unsupported: !c.ConditionType.Supported(),
		}
	}

	report.Actions = make([]ActionRow, len(rule.Actions))
	for i, a := range rule.Actions {
		ar := result.Actions[i]
		report.Actions[i] = ActionRow{
			Index:       i,
			Action:      a,
			Result:      ar,
			State:       InterpretAction(ar, result.Matched, a.OnCondition),
			Output:      result.ActionOutput[i],
			Unsupported: !a.Action.Supported(),
		}
	}

	return report, nil
}

func lengthMismatch(rule *Rule, result *RuleTestResult) map[string]any {
	checks := []struct {
		name string
		got  int
		want int
	}{
		{"conditions", len(result.Conditions), len(rule.Conditions)},
		{"condition_output", len(result.ConditionOutput), len(rule.Conditions)},
		{"actions", len(result.Actions), len(rule.Actions)},
		{"action_output", len(result.ActionOutput), len(rule.Actions)},
	}
	for _, c := range checks {
		if c.got != c.want {
			return map[string]any{
				"field":    c.name,
				"got":      c.got,
				"expected": c.want,
				"reason":   fmt.Sprintf("%s has %d rows, rule has %d", c.name, c.got, c.want),
			}
		}
	}
	return nil
}
