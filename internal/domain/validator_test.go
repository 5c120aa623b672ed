package domain

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genConditionType() gopter.Gen {
	types := make([]any, 0, len(conditionTable))
	for _, spec := range conditionTable {
		types = append(types, spec.Type)
	}
	return gen.OneConstOf(types...)
}

func genActionType() gopter.Gen {
	types := make([]any, 0, len(actionTable))
	for _, spec := range actionTable {
		types = append(types, spec.Type)
	}
	return gen.OneConstOf(types...)
}

// Feature: rule editor, Property 1: discriminant-field invariant
func TestProperty_ValidateConditionRequiresExactlyTheTableFields(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a condition is valid iff every field its type needs is populated", prop.ForAll(
		func(ct ConditionType, value, dateFmt string, keyID, valueID int) bool {
			c := Condition{
				Enabled:       true,
				ConditionType: ct,
				Value:         value,
				DateFmt:       dateFmt,
				Metadata:      MetadataRef{KeyID: keyID, ValueID: valueID},
			}
			spec, _ := LookupCondition(ct)

			want := (!spec.NeedsValue || !blank(value)) &&
				(!spec.NeedsDateFmt || !blank(dateFmt)) &&
				(!spec.NeedsMetadataKey || keyID > 0) &&
				(!spec.NeedsMetadataValue || valueID > 0)

			return ValidateCondition(c).Valid() == want
		},
		genConditionType(),
		gen.OneConstOf("", "  ", "invoice", "12"),
		gen.OneConstOf("", "2006-01-02"),
		gen.OneConstOf(0, 5),
		gen.OneConstOf(0, 9),
	))

	properties.Property("an action is valid iff every field its type needs is populated", prop.ForAll(
		func(at ActionType, value string, keyID, valueID int) bool {
			a := Action{
				Enabled:  true,
				Action:   at,
				Value:    value,
				Metadata: MetadataRef{KeyID: keyID, ValueID: valueID},
			}
			spec, _ := LookupAction(at)

			want := (!spec.NeedsValue || !blank(value)) &&
				(!spec.NeedsMetadataKey || keyID > 0) &&
				(!spec.NeedsMetadataValue || valueID > 0)

			return ValidateAction(a).Valid() == want
		},
		genActionType(),
		gen.OneConstOf("", "\t", "2024"),
		gen.OneConstOf(0, 3),
		gen.OneConstOf(0, 7),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestValidateCondition_MetadataHasKey(t *testing.T) {
	c := Condition{Enabled: true, ConditionType: ConditionMetadataHasKey}

	res := ValidateCondition(c)
	require.False(t, res.Valid())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "metadata.key_id", res.Errors[0].Field)
	assert.Equal(t, FieldRequired, res.Errors[0].Code)

	c.Metadata.KeyID = 5
	assert.True(t, ValidateCondition(c).Valid(), "blank value is fine for has_key")
}

func TestValidateCondition_HasKeyValueNeedsValueID(t *testing.T) {
	c := Condition{ConditionType: ConditionMetadataHasKeyValue, Metadata: MetadataRef{KeyID: 2}}

	res := ValidateCondition(c)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "metadata.value_id", res.Errors[0].Field)
}

func TestValidateCondition_DateNeedsFormat(t *testing.T) {
	c := Condition{ConditionType: ConditionDateBefore, Value: `\d{4}-\d{2}-\d{2}`}

	res := ValidateCondition(c)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "date_fmt", res.Errors[0].Field)

	c.DateFmt = "2006-01-02"
	assert.True(t, ValidateCondition(c).Valid())
}

func TestValidateCondition_TextNeedsValue(t *testing.T) {
	res := ValidateCondition(Condition{ConditionType: ConditionNameContains, Value: "   "})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "value", res.Errors[0].Field)
	assert.Len(t, res.ForField("value"), 1)
	assert.Empty(t, res.ForField("date_fmt"))
}

func TestValidateCondition_UnknownType(t *testing.T) {
	res := ValidateCondition(Condition{ConditionType: "name_rhymes_with", Value: "x"})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "condition_type", res.Errors[0].Field)
	assert.Equal(t, FieldUnknownType, res.Errors[0].Code)
}

func TestValidateAction_Fields(t *testing.T) {
	res := ValidateAction(Action{Action: ActionMetadataAdd, Metadata: MetadataRef{KeyID: 1}})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "metadata.value_id", res.Errors[0].Field)

	assert.True(t, ValidateAction(Action{Action: ActionMetadataRemove, Metadata: MetadataRef{KeyID: 1}}).Valid())

	res = ValidateAction(Action{Action: ActionNameAppend})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "value", res.Errors[0].Field)

	res = ValidateAction(Action{Action: "explode"})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "action", res.Errors[0].Field)
}

func validRule() Rule {
	return Rule{
		Name:     "Invoices",
		Enabled:  true,
		Triggers: []Trigger{TriggerDocumentCreate},
		Mode:     MatchAll,
		Conditions: []Condition{
			{Enabled: true, ConditionType: ConditionNameContains, Value: "invoice"},
			{Enabled: true, ConditionType: ConditionMetadataHasKey, Metadata: MetadataRef{KeyID: 3}},
		},
		Actions: []Action{
			{Enabled: true, OnCondition: true, Action: ActionMetadataAdd, Metadata: MetadataRef{KeyID: 5, ValueID: 9}},
		},
	}
}

func TestValidateRule_Valid(t *testing.T) {
	v := NewRuleValidator()
	rule := validRule()

	res := v.ValidateRule(&rule)
	assert.True(t, res.Valid(), "%+v", res.Errors)
	assert.NoError(t, res.Err())
}

func TestValidateRule_CollectsIndexedFieldErrors(t *testing.T) {
	v := NewRuleValidator()
	rule := validRule()
	rule.Name = ""
	rule.Mode = "match_some"
	rule.Triggers = []Trigger{"document-delete"}
	rule.Conditions[1].Metadata.KeyID = 0
	rule.Actions[0].Metadata.ValueID = 0

	res := v.ValidateRule(&rule)
	require.False(t, res.Valid())

	assert.NotEmpty(t, res.ForField("name"))
	assert.NotEmpty(t, res.ForField("mode"))
	assert.NotEmpty(t, res.ForField("triggers[0]"))
	assert.NotEmpty(t, res.ForField("conditions[1].metadata.key_id"))
	assert.NotEmpty(t, res.ForField("actions[0].metadata.value_id"))
	assert.Empty(t, res.ForField("conditions[0].value"))

	err := res.Err()
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidateRule_WhitespaceName(t *testing.T) {
	rule := validRule()
	rule.Name = "   "

	res := NewRuleValidator().ValidateRule(&rule)
	assert.Len(t, res.ForField("name"), 1)
}

func TestValidateRule_NeedsConditionsAndActions(t *testing.T) {
	rule := validRule()
	rule.Conditions = nil
	rule.Actions = []Action{}

	res := NewRuleValidator().ValidateRule(&rule)
	assert.NotEmpty(t, res.ForField("conditions"))
	assert.NotEmpty(t, res.ForField("actions"))
}

func TestValidateRule_FormatChecks(t *testing.T) {
	rule := validRule()
	rule.Conditions = append(rule.Conditions,
		Condition{Enabled: true, ConditionType: ConditionNameIs, IsRegex: true, Value: "inv(oice"},
		Condition{Enabled: true, ConditionType: ConditionMetadataCountLessThan, Value: "three"},
	)

	res := NewRuleValidator().ValidateRule(&rule)
	require.Len(t, res.ForField("conditions[2].value"), 1)
	assert.Equal(t, FieldInvalid, res.ForField("conditions[2].value")[0].Code)
	require.Len(t, res.ForField("conditions[3].value"), 1)
}

func TestValidateRule_Nil(t *testing.T) {
	res := NewRuleValidator().ValidateRule(nil)
	assert.False(t, res.Valid())
}
