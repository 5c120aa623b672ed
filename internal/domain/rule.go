package domain

import (
	"encoding/json"
	"time"
)

// Trigger is the document lifecycle event that makes the server evaluate a rule
type Trigger string

const (
	// TriggerDocumentCreate fires when a document is uploaded
	TriggerDocumentCreate Trigger = "document-create"
	// TriggerDocumentUpdate fires when a document is edited
	TriggerDocumentUpdate Trigger = "document-update"
)

// DefaultTrigger is applied on submit when a rule carries no triggers
const DefaultTrigger = TriggerDocumentCreate

// Triggers lists every trigger kind the server understands
func Triggers() []Trigger {
	return []Trigger{TriggerDocumentCreate, TriggerDocumentUpdate}
}

// MatchMode combines the outcomes of a rule's conditions
type MatchMode string

const (
	MatchAll MatchMode = "match_all"
	MatchAny MatchMode = "match_any"
)

// MetadataRef points at a metadata key and, optionally, one of its values
type MetadataRef struct {
	KeyID   int `json:"key_id" yaml:"key_id"`
	ValueID int `json:"value_id" yaml:"value_id"`
}

// IsZero reports whether neither key nor value is set
func (m MetadataRef) IsZero() bool {
	return m.KeyID == 0 && m.ValueID == 0
}

// Rule is a user-owned processing rule
type Rule struct {
	ID          int         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string      `json:"name" yaml:"name" validate:"required,max=250"`
	Description string      `json:"description" yaml:"description,omitempty"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Triggers    []Trigger   `json:"triggers" yaml:"triggers" validate:"dive,oneof=document-create document-update"`
	Mode        MatchMode   `json:"mode" yaml:"mode" validate:"required,oneof=match_all match_any"`
	Conditions  []Condition `json:"conditions" yaml:"conditions" validate:"min=1"`
	Actions     []Action    `json:"actions" yaml:"actions" validate:"min=1"`
	CreatedAt   time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"-"`

	// Fields the server sent that this model does not know about
	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

// Condition is one boolean test against a document
type Condition struct {
	ID              int           `json:"id,omitempty" yaml:"id,omitempty"`
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	CaseInsensitive bool          `json:"case_insensitive" yaml:"case_insensitive"`
	Inverted        bool          `json:"inverted" yaml:"inverted"`
	IsRegex         bool          `json:"is_regex" yaml:"is_regex"`
	ConditionType   ConditionType `json:"condition_type" yaml:"condition_type"`
	Value           string        `json:"value,omitempty" yaml:"value,omitempty"`
	DateFmt         string        `json:"date_fmt" yaml:"date_fmt,omitempty"`
	Metadata        MetadataRef   `json:"metadata,omitzero" yaml:"metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

// Action is one mutation applied to a document when the rule gate allows it
type Action struct {
	ID          int         `json:"id,omitempty" yaml:"id,omitempty"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	OnCondition bool        `json:"on_condition" yaml:"on_condition"`
	Action      ActionType  `json:"action" yaml:"action"`
	Value       string      `json:"value,omitempty" yaml:"value,omitempty"`
	Metadata    MetadataRef `json:"metadata,omitzero" yaml:"metadata,omitempty"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

// NewCondition returns the row the editor inserts by default
func NewCondition() Condition {
	return Condition{Enabled: true, ConditionType: ConditionNameContains}
}

// NewAction returns the row the editor inserts by default
func NewAction() Action {
	return Action{Enabled: true, OnCondition: true, Action: ActionNameSet}
}

// NewRule returns an empty rule with the editor defaults
func NewRule() Rule {
	return Rule{
		Enabled:    true,
		Triggers:   []Trigger{DefaultTrigger},
		Mode:       MatchAll,
		Conditions: []Condition{NewCondition()},
		Actions:    []Action{NewAction()},
	}
}

// Clone returns a deep copy of the rule
func (r Rule) Clone() Rule {
	out := r
	out.Triggers = append([]Trigger(nil), r.Triggers...)
	out.Conditions = make([]Condition, len(r.Conditions))
	for i, c := range r.Conditions {
		c.Extra = cloneExtra(c.Extra)
		out.Conditions[i] = c
	}
	out.Actions = make([]Action, len(r.Actions))
	for i, a := range r.Actions {
		a.Extra = cloneExtra(a.Extra)
		out.Actions[i] = a
	}
	out.Extra = cloneExtra(r.Extra)
	return out
}

type ruleFields Rule
type conditionFields Condition
type actionFields Action

var (
	ruleKnown      = jsonFieldNames(ruleFields{})
	conditionKnown = jsonFieldNames(conditionFields{})
	actionKnown    = jsonFieldNames(actionFields{})
)

// UnmarshalJSON decodes a rule and keeps fields this model does not define
func (r *Rule) UnmarshalJSON(data []byte) error {
	var f ruleFields
	extra, err := decodeWithExtra(data, &f, ruleKnown)
	if err != nil {
		return err
	}
	*r = Rule(f)
	r.Extra = extra
	return nil
}

// MarshalJSON encodes a rule including any preserved unknown fields
func (r Rule) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(ruleFields(r), r.Extra)
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	var f conditionFields
	extra, err := decodeWithExtra(data, &f, conditionKnown)
	if err != nil {
		return err
	}
	*c = Condition(f)
	c.Extra = extra
	return nil
}

func (c Condition) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(conditionFields(c), c.Extra)
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var f actionFields
	extra, err := decodeWithExtra(data, &f, actionKnown)
	if err != nil {
		return err
	}
	*a = Action(f)
	a.Extra = extra
	return nil
}

func (a Action) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(actionFields(a), a.Extra)
}
