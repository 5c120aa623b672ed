package domain

import "strings"

// ConditionType discriminates what a condition tests
type ConditionType string

// ActionType discriminates what an action mutates
type ActionType string

const (
	ConditionNameIs                ConditionType = "name_is"
	ConditionNameStarts            ConditionType = "name_starts"
	ConditionNameContains          ConditionType = "name_contains"
	ConditionDescriptionIs         ConditionType = "description_is"
	ConditionDescriptionStarts     ConditionType = "description_starts"
	ConditionDescriptionContains   ConditionType = "description_contains"
	ConditionContentIs             ConditionType = "content_is"
	ConditionContentStarts         ConditionType = "content_starts"
	ConditionContentContains       ConditionType = "content_contains"
	ConditionDateIs                ConditionType = "date_is"
	ConditionDateAfter             ConditionType = "date_after"
	ConditionDateBefore            ConditionType = "date_before"
	ConditionMetadataHasKey        ConditionType = "metadata_has_key"
	ConditionMetadataHasKeyValue   ConditionType = "metadata_has_key_value"
	ConditionMetadataCount         ConditionType = "metadata_count"
	ConditionMetadataCountLessThan ConditionType = "metadata_count_less_than"
	ConditionMetadataCountMoreThan ConditionType = "metadata_count_more_than"
)

const (
	ActionNameSet           ActionType = "name_set"
	ActionNameAppend        ActionType = "name_append"
	ActionDescriptionSet    ActionType = "description_set"
	ActionDescriptionAppend ActionType = "description_append"
	ActionMetadataAdd       ActionType = "metadata_add"
	ActionMetadataRemove    ActionType = "metadata_remove"
	ActionDateSet           ActionType = "date_set"
)

// ConditionSpec describes which fields a condition type uses
type ConditionSpec struct {
	Type               ConditionType `json:"type"`
	Label              string        `json:"label"`
	NeedsValue         bool          `json:"needs_value"`
	NeedsDateFmt       bool          `json:"needs_date_fmt"`
	NeedsMetadataKey   bool          `json:"needs_metadata_key"`
	NeedsMetadataValue bool          `json:"needs_metadata_value"`
	// TextModifiers is set when case_insensitive, inverted and is_regex apply
	TextModifiers bool `json:"text_modifiers"`
	// NumericValue is set when value must be an integer
	NumericValue bool `json:"numeric_value"`
}

// ActionSpec describes which fields an action type uses
type ActionSpec struct {
	Type               ActionType `json:"type"`
	Label              string     `json:"label"`
	NeedsValue         bool       `json:"needs_value"`
	NeedsMetadataKey   bool       `json:"needs_metadata_key"`
	NeedsMetadataValue bool       `json:"needs_metadata_value"`
}

func textCondition(t ConditionType, label string) ConditionSpec {
	return ConditionSpec{Type: t, Label: label, NeedsValue: true, TextModifiers: true}
}

func dateCondition(t ConditionType, label string) ConditionSpec {
	return ConditionSpec{Type: t, Label: label, NeedsValue: true, NeedsDateFmt: true}
}

func countCondition(t ConditionType, label string) ConditionSpec {
	return ConditionSpec{Type: t, Label: label, NeedsValue: true, NumericValue: true}
}

// conditionTable is the single source of truth for condition types.
// Adding a type means adding a constant above and one row here.
var conditionTable = []ConditionSpec{
	textCondition(ConditionNameIs, "Name is"),
	textCondition(ConditionNameStarts, "Name starts with"),
	textCondition(ConditionNameContains, "Name contains"),
	textCondition(ConditionDescriptionIs, "Description is"),
	textCondition(ConditionDescriptionStarts, "Description starts with"),
	textCondition(ConditionDescriptionContains, "Description contains"),
	textCondition(ConditionContentIs, "Content is"),
	textCondition(ConditionContentStarts, "Content starts with"),
	textCondition(ConditionContentContains, "Content contains"),
	dateCondition(ConditionDateIs, "Date is"),
	dateCondition(ConditionDateAfter, "Date is after"),
	dateCondition(ConditionDateBefore, "Date is before"),
	{Type: ConditionMetadataHasKey, Label: "Has metadata key", NeedsMetadataKey: true},
	{Type: ConditionMetadataHasKeyValue, Label: "Has metadata key and value", NeedsMetadataKey: true, NeedsMetadataValue: true},
	countCondition(ConditionMetadataCount, "Metadata count equals"),
	countCondition(ConditionMetadataCountLessThan, "Metadata count less than"),
	countCondition(ConditionMetadataCountMoreThan, "Metadata count more than"),
}

var actionTable = []ActionSpec{
	{Type: ActionNameSet, Label: "Set name", NeedsValue: true},
	{Type: ActionNameAppend, Label: "Append to name", NeedsValue: true},
	{Type: ActionDescriptionSet, Label: "Set description", NeedsValue: true},
	{Type: ActionDescriptionAppend, Label: "Append to description", NeedsValue: true},
	{Type: ActionMetadataAdd, Label: "Add metadata", NeedsMetadataKey: true, NeedsMetadataValue: true},
	{Type: ActionMetadataRemove, Label: "Remove metadata", NeedsMetadataKey: true},
	{Type: ActionDateSet, Label: "Set date", NeedsValue: true},
}

var (
	conditionIndex = indexBy(conditionTable, func(s ConditionSpec) ConditionType { return s.Type })
	actionIndex    = indexBy(actionTable, func(s ActionSpec) ActionType { return s.Type })
)

func indexBy[K comparable, V any](rows []V, key func(V) K) map[K]V {
	m := make(map[K]V, len(rows))
	for _, row := range rows {
		m[key(row)] = row
	}
	return m
}

// ConditionTypes returns the condition table in display order
func ConditionTypes() []ConditionSpec {
	return append([]ConditionSpec(nil), conditionTable...)
}

// ActionTypes returns the action table in display order
func ActionTypes() []ActionSpec {
	return append([]ActionSpec(nil), actionTable...)
}

// LookupCondition returns the field requirements of a condition type
func LookupCondition(t ConditionType) (ConditionSpec, error) {
	spec, ok := conditionIndex[t]
	if !ok {
		return ConditionSpec{}, NewAppError(ErrUnknownConditionType, "Unsupported condition type", 422, map[string]any{
			"field": "condition_type",
			"value": string(t),
		})
	}
	return spec, nil
}

// LookupAction returns the field requirements of an action type
func LookupAction(t ActionType) (ActionSpec, error) {
	spec, ok := actionIndex[t]
	if !ok {
		return ActionSpec{}, NewAppError(ErrUnknownActionType, "Unsupported action type", 422, map[string]any{
			"field": "action",
			"value": string(t),
		})
	}
	return spec, nil
}

// Supported reports whether the type is in the registry
func (t ConditionType) Supported() bool {
	_, ok := conditionIndex[t]
	return ok
}

// Supported reports whether the type is in the registry
func (t ActionType) Supported() bool {
	_, ok := actionIndex[t]
	return ok
}

// Subject returns the document field a text or date condition reads: name, description, content or date
func (t ConditionType) Subject() string {
	subject, _, _ := strings.Cut(string(t), "_")
	return subject
}

// IsMetadata reports whether the action edits document metadata
func (t ActionType) IsMetadata() bool {
	return strings.HasPrefix(string(t), "metadata")
}
