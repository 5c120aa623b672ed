package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Feature: rule editor, Property 2: round-trip idempotence
func TestProperty_NormalizeParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("serialize -> parse -> serialize is stable for any well-formed rule DTO", prop.ForAll(
		func(name string, mode MatchMode, ct ConditionType, at ActionType, value string, keyID, valueID int, inverted, withExtra bool) bool {
			rule := Rule{
				ID:       keyID,
				Name:     name,
				Enabled:  inverted,
				Triggers: []Trigger{TriggerDocumentUpdate},
				Mode:     mode,
				Conditions: []Condition{{
					Enabled:       true,
					Inverted:      inverted,
					ConditionType: ct,
					Value:         value,
					DateFmt:       "2006-01-02",
					Metadata:      MetadataRef{KeyID: keyID, ValueID: valueID},
				}},
				Actions: []Action{{
					Enabled:     true,
					OnCondition: !inverted,
					Action:      at,
					Value:       value,
					Metadata:    MetadataRef{KeyID: keyID, ValueID: valueID},
				}},
			}
			if withExtra {
				rule.Extra = map[string]json.RawMessage{"owner": json.RawMessage(`"alice"`)}
				rule.Conditions[0].Extra = map[string]json.RawMessage{"hint": json.RawMessage(`{"a":1}`)}
			}

			first, err := json.Marshal(NormalizeForSubmit(rule))
			if err != nil {
				return false
			}
			parsed, err := ParseFromServer(first)
			if err != nil {
				return false
			}
			second, err := json.Marshal(NormalizeForSubmit(*parsed))
			if err != nil {
				return false
			}
			return bytes.Equal(first, second)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.OneConstOf(MatchAll, MatchAny),
		genConditionType(),
		genActionType(),
		gen.OneConstOf("", "invoice", "March 2024"),
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestParseFromServer_KeepsUnknownFieldsAndTypes(t *testing.T) {
	body := `{
		"id": 12,
		"name": "Receipts",
		"description": "",
		"enabled": true,
		"triggers": ["document-update"],
		"mode": "match_any",
		"owner": "alice",
		"created_at": "2024-03-01T10:00:00Z",
		"updated_at": "2024-03-02T10:00:00Z",
		"conditions": [
			{"id": 4, "enabled": true, "condition_type": "name_soundex", "value": "rcpt", "metadata": {"key_id": 0, "value_id": 0}, "weight": 3}
		],
		"actions": [
			{"id": 8, "enabled": true, "on_condition": true, "action": "tag_color", "value": "red", "metadata": {"key_id": 1, "value_id": 2}}
		]
	}`

	rule, err := ParseFromServer([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, 12, rule.ID)
	assert.Equal(t, MatchAny, rule.Mode)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), rule.CreatedAt.UTC())
	assert.JSONEq(t, `"alice"`, string(rule.Extra["owner"]))
	assert.Equal(t, ConditionType("name_soundex"), rule.Conditions[0].ConditionType)
	assert.False(t, rule.Conditions[0].ConditionType.Supported())
	assert.JSONEq(t, `3`, string(rule.Conditions[0].Extra["weight"]))

	out, err := json.Marshal(NormalizeForSubmit(*rule))
	require.NoError(t, err)

	var sent map[string]any
	require.NoError(t, json.Unmarshal(out, &sent))
	assert.Equal(t, "alice", sent["owner"])
	assert.NotContains(t, sent, "created_at")
	assert.NotContains(t, sent, "updated_at")

	cond := sent["conditions"].([]any)[0].(map[string]any)
	assert.Equal(t, "name_soundex", cond["condition_type"])
	assert.Equal(t, float64(3), cond["weight"])

	action := sent["actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "tag_color", action["action"])
	assert.Equal(t, "red", action["value"])
	assert.Equal(t, map[string]any{"key_id": float64(1), "value_id": float64(2)}, action["metadata"])
}

func TestParseFromServer_NullSlices(t *testing.T) {
	rule, err := ParseFromServer([]byte(`{"name": "x", "triggers": null}`))
	require.NoError(t, err)
	assert.NotNil(t, rule.Triggers)
	assert.NotNil(t, rule.Conditions)
	assert.NotNil(t, rule.Actions)

	_, err = ParseFromServer([]byte(`{"name": `))
	assert.Error(t, err)
}

func TestNormalizeForSubmit_DefaultsTriggers(t *testing.T) {
	rule := validRule()
	rule.Triggers = nil

	dto := NormalizeForSubmit(rule)
	assert.Equal(t, []Trigger{TriggerDocumentCreate}, dto.Triggers)

	rule.Triggers = []Trigger{TriggerDocumentUpdate, TriggerDocumentUpdate, "", TriggerDocumentCreate}
	dto = NormalizeForSubmit(rule)
	assert.Equal(t, []Trigger{TriggerDocumentUpdate, TriggerDocumentCreate}, dto.Triggers)
}

func TestNormalizeForSubmit_ClearsInactiveFields(t *testing.T) {
	rule := validRule()
	rule.Name = "  Invoices  "
	rule.Conditions[0].Metadata = MetadataRef{KeyID: 4, ValueID: 4}
	rule.Conditions[0].DateFmt = "2006"
	rule.Conditions[1].Value = "leftover text"
	rule.Conditions[1].Metadata.ValueID = 11
	rule.Conditions[1].Inverted = true
	rule.Actions[0].Value = "leftover"
	rule.CreatedAt = time.Now()

	dto := NormalizeForSubmit(rule)

	assert.Equal(t, "Invoices", dto.Name)
	assert.True(t, dto.Conditions[0].Metadata.IsZero())
	assert.Empty(t, dto.Conditions[0].DateFmt)
	assert.Equal(t, "invoice", dto.Conditions[0].Value)

	assert.Empty(t, dto.Conditions[1].Value)
	assert.Equal(t, MetadataRef{KeyID: 3}, dto.Conditions[1].Metadata)
	assert.False(t, dto.Conditions[1].Inverted)

	assert.Empty(t, dto.Actions[0].Value)
	assert.Equal(t, MetadataRef{KeyID: 5, ValueID: 9}, dto.Actions[0].Metadata)

	// the input is not modified
	assert.Equal(t, "leftover text", rule.Conditions[1].Value)
}

func TestNormalizeForSubmit_OmitsInactiveFieldsOnTheWire(t *testing.T) {
	rule := validRule()
	rule.Conditions[0].Metadata = MetadataRef{KeyID: 4}
	rule.Conditions[1].Value = "leftover text"
	rule.Actions[0].Value = "leftover"

	out, err := json.Marshal(NormalizeForSubmit(rule))
	require.NoError(t, err)

	var sent struct {
		Conditions []map[string]any `json:"conditions"`
		Actions    []map[string]any `json:"actions"`
	}
	require.NoError(t, json.Unmarshal(out, &sent))

	assert.NotContains(t, sent.Conditions[0], "metadata")
	assert.Equal(t, "invoice", sent.Conditions[0]["value"])

	assert.NotContains(t, sent.Conditions[1], "value")
	assert.Equal(t, map[string]any{"key_id": float64(3), "value_id": float64(0)}, sent.Conditions[1]["metadata"])

	assert.NotContains(t, sent.Actions[0], "value")
	assert.Equal(t, map[string]any{"key_id": float64(5), "value_id": float64(9)}, sent.Actions[0]["metadata"])
}

func TestNormalizeForCreate_StripsIDs(t *testing.T) {
	rule := validRule()
	rule.ID = 12
	rule.Conditions[0].ID = 40
	rule.Conditions[1].ID = 42
	rule.Actions[0].ID = 41

	dto := NormalizeForCreate(rule)
	assert.Zero(t, dto.ID)
	for _, c := range dto.Conditions {
		assert.Zero(t, c.ID)
	}
	assert.Zero(t, dto.Actions[0].ID)
	assert.Equal(t, "invoice", dto.Conditions[0].Value)

	out, err := json.Marshal(dto)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"id"`)

	// the input keeps its ids
	assert.Equal(t, 40, rule.Conditions[0].ID)
	assert.Equal(t, 12, NormalizeForSubmit(rule).ID)
}

func TestNormalizeForSubmit_EmptyRuleNeverEmitsNull(t *testing.T) {
	out, err := json.Marshal(NormalizeForSubmit(Rule{Name: "x"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "x",
		"description": "",
		"enabled": false,
		"triggers": ["document-create"],
		"mode": "match_all",
		"conditions": [],
		"actions": []
	}`, string(out))
}

func TestNewRule_Defaults(t *testing.T) {
	rule := NewRule()
	assert.True(t, rule.Enabled)
	assert.Equal(t, MatchAll, rule.Mode)
	require.Len(t, rule.Conditions, 1)
	require.Len(t, rule.Actions, 1)
	assert.True(t, rule.Conditions[0].Enabled)
	assert.True(t, rule.Actions[0].OnCondition)
	assert.Zero(t, rule.ID)
}

func TestRule_CloneIsDeep(t *testing.T) {
	rule := validRule()
	rule.Conditions[0].Extra = map[string]json.RawMessage{"k": json.RawMessage(`1`)}

	clone := rule.Clone()
	clone.Conditions[0].Value = "changed"
	clone.Triggers[0] = TriggerDocumentUpdate
	clone.Conditions[0].Extra["k"] = json.RawMessage(`2`)

	assert.Equal(t, "invoice", rule.Conditions[0].Value)
	assert.Equal(t, TriggerDocumentCreate, rule.Triggers[0])
	assert.JSONEq(t, `1`, string(rule.Conditions[0].Extra["k"]))
}
