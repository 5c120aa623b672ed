package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RuleDTO is the request body sent when creating or updating a rule
type RuleDTO struct {
	ID          int         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description,omitempty"`
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Triggers    []Trigger   `json:"triggers" yaml:"triggers"`
	Mode        MatchMode   `json:"mode" yaml:"mode"`
	Conditions  []Condition `json:"conditions" yaml:"conditions"`
	Actions     []Action    `json:"actions" yaml:"actions"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

type ruleDTOFields RuleDTO

// MarshalJSON encodes the DTO including fields preserved from the server copy
func (d RuleDTO) MarshalJSON() ([]byte, error) {
	return encodeWithExtra(ruleDTOFields(d), d.Extra)
}

// ParseFromServer decodes a rule body returned by the backend
func ParseFromServer(data []byte) (*Rule, error) {
	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to decode rule: %w", err)
	}
	if rule.Triggers == nil {
		rule.Triggers = []Trigger{}
	}
	if rule.Conditions == nil {
		rule.Conditions = []Condition{}
	}
	if rule.Actions == nil {
		rule.Actions = []Action{}
	}
	return &rule, nil
}

// NormalizeForSubmit turns an edited rule into the body the server expects.
// It never fails: unknown condition and action types pass through untouched.
func NormalizeForSubmit(rule Rule) RuleDTO {
	dto := RuleDTO{
		ID:          rule.ID,
		Name:        strings.TrimSpace(rule.Name),
		Description: rule.Description,
		Enabled:     rule.Enabled,
		Triggers:    normalizeTriggers(rule.Triggers),
		Mode:        rule.Mode,
		Conditions:  make([]Condition, 0, len(rule.Conditions)),
		Actions:     make([]Action, 0, len(rule.Actions)),
		Extra:       cloneExtra(rule.Extra),
	}
	if dto.Mode == "" {
		dto.Mode = MatchAll
	}

	for _, c := range rule.Conditions {
		dto.Conditions = append(dto.Conditions, c.Normalized())
	}
	for _, a := range rule.Actions {
		dto.Actions = append(dto.Actions, a.Normalized())
	}
	return dto
}

// NormalizeForCreate is NormalizeForSubmit without rule, condition and action
// ids, for a rule copied from elsewhere that the server must number afresh
func NormalizeForCreate(rule Rule) RuleDTO {
	dto := NormalizeForSubmit(rule)
	dto.ID = 0
	for i := range dto.Conditions {
		dto.Conditions[i].ID = 0
	}
	for i := range dto.Actions {
		dto.Actions[i].ID = 0
	}
	return dto
}

func normalizeTriggers(triggers []Trigger) []Trigger {
	out := make([]Trigger, 0, len(triggers))
	seen := make(map[Trigger]bool, len(triggers))
	for _, t := range triggers {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		out = append(out, DefaultTrigger)
	}
	return out
}

// Normalized clears the fields the condition type does not use, so a text
// condition never carries a metadata reference and vice versa. Unknown types
// are returned unchanged.
func (c Condition) Normalized() Condition {
	c.Extra = cloneExtra(c.Extra)
	spec, err := LookupCondition(c.ConditionType)
	if err != nil {
		return c
	}
	if !spec.NeedsValue {
		c.Value = ""
	}
	if !spec.NeedsDateFmt {
		c.DateFmt = ""
	}
	if !spec.NeedsMetadataKey {
		c.Metadata = MetadataRef{}
	} else if !spec.NeedsMetadataValue {
		c.Metadata.ValueID = 0
	}
	if !spec.TextModifiers {
		c.CaseInsensitive = false
		c.Inverted = false
		c.IsRegex = false
	}
	return c
}

// Normalized clears the fields the action type does not use
func (a Action) Normalized() Action {
	a.Extra = cloneExtra(a.Extra)
	spec, err := LookupAction(a.Action)
	if err != nil {
		return a
	}
	if !spec.NeedsValue {
		a.Value = ""
	}
	if !spec.NeedsMetadataKey {
		a.Metadata = MetadataRef{}
	}
	return a
}
