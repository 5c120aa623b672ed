package editor

import (
	"fmt"

	"github.com/virtualpaper/console/internal/domain"
)

// OpKind names one editor transition
type OpKind string

const (
	OpSetName          OpKind = "set_name"
	OpSetDescription   OpKind = "set_description"
	OpSetEnabled       OpKind = "set_enabled"
	OpSetMode          OpKind = "set_mode"
	OpSetTriggers      OpKind = "set_triggers"
	OpAddCondition     OpKind = "add_condition"
	OpRemoveCondition  OpKind = "remove_condition"
	OpUpdateCondition  OpKind = "update_condition"
	OpSetConditionType OpKind = "set_condition_type"
	OpMoveCondition    OpKind = "move_condition"
	OpAddAction        OpKind = "add_action"
	OpRemoveAction     OpKind = "remove_action"
	OpUpdateAction     OpKind = "update_action"
	OpSetActionType    OpKind = "set_action_type"
	OpMoveAction       OpKind = "move_action"
)

// Op is a serialized editor transition, as sent by the browser
type Op struct {
	Kind          OpKind               `json:"kind"`
	Index         int                  `json:"index"`
	To            int                  `json:"to"`
	Text          string               `json:"text,omitempty"`
	Enabled       bool                 `json:"enabled,omitempty"`
	Mode          domain.MatchMode     `json:"mode,omitempty"`
	Triggers      []domain.Trigger     `json:"triggers,omitempty"`
	ConditionType domain.ConditionType `json:"condition_type,omitempty"`
	ActionType    domain.ActionType    `json:"action_type,omitempty"`
	Condition     *domain.Condition    `json:"condition,omitempty"`
	Action        *domain.Action       `json:"action,omitempty"`
}

// Apply runs one op against rule and returns the new rule
func Apply(rule domain.Rule, op Op) (domain.Rule, error) {
	switch op.Kind {
	case OpSetName:
		out := rule.Clone()
		out.Name = op.Text
		return out, nil
	case OpSetDescription:
		out := rule.Clone()
		out.Description = op.Text
		return out, nil
	case OpSetEnabled:
		out := rule.Clone()
		out.Enabled = op.Enabled
		return out, nil
	case OpSetMode:
		out := rule.Clone()
		out.Mode = op.Mode
		return out, nil
	case OpSetTriggers:
		out := rule.Clone()
		out.Triggers = append([]domain.Trigger(nil), op.Triggers...)
		return out, nil

	case OpAddCondition:
		return AddCondition(rule), nil
	case OpRemoveCondition:
		return RemoveCondition(rule, op.Index)
	case OpUpdateCondition:
		if op.Condition == nil {
			return rule, missingPayload(op.Kind, "condition")
		}
		replacement := *op.Condition
		return UpdateCondition(rule, op.Index, func(domain.Condition) domain.Condition { return replacement })
	case OpSetConditionType:
		return SetConditionType(rule, op.Index, op.ConditionType)
	case OpMoveCondition:
		return MoveCondition(rule, op.Index, op.To)

	case OpAddAction:
		return AddAction(rule), nil
	case OpRemoveAction:
		return RemoveAction(rule, op.Index)
	case OpUpdateAction:
		if op.Action == nil {
			return rule, missingPayload(op.Kind, "action")
		}
		replacement := *op.Action
		return UpdateAction(rule, op.Index, func(domain.Action) domain.Action { return replacement })
	case OpSetActionType:
		return SetActionType(rule, op.Index, op.ActionType)
	case OpMoveAction:
		return MoveAction(rule, op.Index, op.To)
	}

	return rule, domain.NewAppError(domain.ErrInvalidInput, fmt.Sprintf("unknown editor operation %q", op.Kind), 400, map[string]any{
		"field": "kind",
	})
}

func missingPayload(kind OpKind, field string) error {
	return domain.NewAppError(domain.ErrInvalidInput, fmt.Sprintf("%s needs a %s", kind, field), 400, map[string]any{
		"field": field,
	})
}
