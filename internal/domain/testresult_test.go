package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpretCondition(t *testing.T) {
	assert.Equal(t, ConditionSkipped, InterpretCondition(ConditionResult{Matched: true, Skipped: true}))
	assert.Equal(t, ConditionSkipped, InterpretCondition(ConditionResult{Skipped: true}))
	assert.Equal(t, ConditionMatched, InterpretCondition(ConditionResult{Matched: true}))
	assert.Equal(t, ConditionNotMatched, InterpretCondition(ConditionResult{}))
}

func TestInterpretAction_Gating(t *testing.T) {
	// on_condition=true, rule did not match: skipped even though the server did not flag it
	assert.Equal(t, ActionSkipped, InterpretAction(ActionResult{Skipped: false}, false, true))
	// on_condition=false, rule did not match: the "not matched" branch runs
	assert.Equal(t, ActionWouldExecute, InterpretAction(ActionResult{Skipped: false}, false, false))
	assert.Equal(t, ActionWouldExecute, InterpretAction(ActionResult{}, true, true))
	assert.Equal(t, ActionSkipped, InterpretAction(ActionResult{}, true, false))
	assert.Equal(t, ActionSkipped, InterpretAction(ActionResult{Skipped: true}, true, true))
}

// Feature: rule tester, Properties 3 and 4: skip precedence and action gating
func TestProperty_InterpretationRules(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a skipped condition is never shown as matched", prop.ForAll(
		func(matched bool) bool {
			return InterpretCondition(ConditionResult{Matched: matched, Skipped: true}) == ConditionSkipped
		},
		gen.Bool(),
	))

	properties.Property("an action would execute iff not skipped and the rule outcome equals on_condition", prop.ForAll(
		func(skipped, ruleMatched, onCondition bool) bool {
			state := InterpretAction(ActionResult{Skipped: skipped}, ruleMatched, onCondition)
			want := !skipped && ruleMatched == onCondition
			return (state == ActionWouldExecute) == want
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func threeConditionRule() *Rule {
	return &Rule{
		ID:   7,
		Mode: MatchAll,
		Conditions: []Condition{
			{Enabled: true, ConditionType: ConditionNameContains, Value: "a"},
			{Enabled: false, ConditionType: ConditionNameContains, Value: "b"},
			{Enabled: true, ConditionType: "name_unknown", Value: "c"},
		},
		Actions: []Action{
			{Enabled: true, OnCondition: true, Action: ActionNameAppend, Value: "!"},
			{Enabled: true, OnCondition: false, Action: ActionNameSet, Value: "other"},
		},
	}
}

func TestInterpret_ZipsRowsByIndex(t *testing.T) {
	rule := threeConditionRule()
	result := &RuleTestResult{
		RuleID:  7,
		Matched: true,
		TookMs:  4,
		Log:     "start\nend\n",
		Conditions: []ConditionResult{
			{ConditionID: 1, Matched: true},
			{ConditionID: 2, Skipped: true},
			{ConditionID: 3, Matched: true},
		},
		Actions:         []ActionResult{{ActionID: 1}, {ActionID: 2}},
		ConditionOutput: [][]string{{"c1"}, {"c2"}, {"c3"}},
		ActionOutput:    [][]string{{"a1"}, nil},
	}

	report, err := Interpret(rule, result)
	require.NoError(t, err)
	assert.False(t, report.Degraded)
	assert.Equal(t, []string{"start", "end"}, report.LogLines())

	require.Len(t, report.Conditions, 3)
	assert.Equal(t, ConditionMatched, report.Conditions[0].State)
	assert.Equal(t, ConditionSkipped, report.Conditions[1].State)
	assert.Equal(t, []string{"c2"}, report.Conditions[1].Output)
	assert.True(t, report.Conditions[2].Unsupported)
	assert.Equal(t, ConditionType("name_unknown"), report.Conditions[2].Condition.ConditionType)

	require.Len(t, report.Actions, 2)
	assert.Equal(t, ActionWouldExecute, report.Actions[0].State)
	assert.Equal(t, ActionSkipped, report.Actions[1].State)
	assert.Equal(t, []string{"a1"}, report.Actions[0].Output)
}

// Feature: rule tester, Property 5: index correlation integrity
func TestInterpret_LengthMismatchDegradesToLog(t *testing.T) {
	rule := threeConditionRule()
	result := &RuleTestResult{
		Matched:         true,
		Log:             "raw trace",
		Conditions:      []ConditionResult{{}, {}, {}},
		Actions:         []ActionResult{{}, {}},
		ConditionOutput: [][]string{{"c1"}, {"c2"}},
		ActionOutput:    [][]string{{}, {}},
	}

	var report *TestReport
	var err error
	require.NotPanics(t, func() {
		report, err = Interpret(rule, result)
	})
	require.Error(t, err)
	assert.True(t, IsMalformedTestResult(err))
	require.NotNil(t, report)
	assert.True(t, report.Degraded)
	assert.Equal(t, "raw trace", report.Log)
	assert.Empty(t, report.Conditions)
	assert.Empty(t, report.Actions)

	appErr, _ := AsAppError(err)
	details := appErr.Details.(map[string]any)
	assert.Equal(t, "condition_output", details["field"])
}

func TestInterpret_ActionCountMismatch(t *testing.T) {
	rule := threeConditionRule()
	result := &RuleTestResult{
		Conditions:      make([]ConditionResult, 3),
		ConditionOutput: make([][]string, 3),
		Actions:         make([]ActionResult, 3),
		ActionOutput:    make([][]string, 2),
	}

	report, err := Interpret(rule, result)
	assert.True(t, IsMalformedTestResult(err))
	assert.True(t, report.Degraded)
}

func TestInterpret_NilInputs(t *testing.T) {
	report, err := Interpret(threeConditionRule(), nil)
	assert.True(t, IsMalformedTestResult(err))
	assert.True(t, report.Degraded)

	report, err = Interpret(nil, &RuleTestResult{Log: "x"})
	assert.True(t, IsMalformedTestResult(err))
	assert.Equal(t, "x", report.Log)
}
