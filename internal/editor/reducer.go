// Package editor holds the rule form state transitions. Every function takes a
// rule by value and returns a new one; the input is never modified.
package editor

import (
	"fmt"

	"github.com/virtualpaper/console/internal/domain"
)

func outOfRange(kind string, index, length int) error {
	return domain.NewAppError(domain.ErrInvalidInput, fmt.Sprintf("%s index out of range", kind), 400, map[string]any{
		"index":  index,
		"length": length,
	})
}

func move[T any](rows []T, from, to int) []T {
	row := rows[from]
	rows = append(rows[:from], rows[from+1:]...)
	rows = append(rows[:to], append([]T{row}, rows[to:]...)...)
	return rows
}

// AddCondition appends a default condition
func AddCondition(rule domain.Rule) domain.Rule {
	out := rule.Clone()
	out.Conditions = append(out.Conditions, domain.NewCondition())
	return out
}

// RemoveCondition drops the condition at index
func RemoveCondition(rule domain.Rule, index int) (domain.Rule, error) {
	if index < 0 || index >= len(rule.Conditions) {
		return rule, outOfRange("condition", index, len(rule.Conditions))
	}
	out := rule.Clone()
	out.Conditions = append(out.Conditions[:index], out.Conditions[index+1:]...)
	return out, nil
}

// UpdateCondition replaces the condition at index with update's result
func UpdateCondition(rule domain.Rule, index int, update func(domain.Condition) domain.Condition) (domain.Rule, error) {
	if index < 0 || index >= len(rule.Conditions) {
		return rule, outOfRange("condition", index, len(rule.Conditions))
	}
	out := rule.Clone()
	out.Conditions[index] = update(out.Conditions[index])
	return out, nil
}

// SetConditionType switches the condition's type and clears the fields the new type does not use
func SetConditionType(rule domain.Rule, index int, ct domain.ConditionType) (domain.Rule, error) {
	return UpdateCondition(rule, index, func(c domain.Condition) domain.Condition {
		c.ConditionType = ct
		return c.Normalized()
	})
}

// MoveCondition moves the condition at from so it ends up at to
func MoveCondition(rule domain.Rule, from, to int) (domain.Rule, error) {
	n := len(rule.Conditions)
	if from < 0 || from >= n {
		return rule, outOfRange("condition", from, n)
	}
	if to < 0 || to >= n {
		return rule, outOfRange("condition", to, n)
	}
	out := rule.Clone()
	out.Conditions = move(out.Conditions, from, to)
	return out, nil
}

// AddAction appends a default action
func AddAction(rule domain.Rule) domain.Rule {
	out := rule.Clone()
	out.Actions = append(out.Actions, domain.NewAction())
	return out
}

// RemoveAction drops the action at index
func RemoveAction(rule domain.Rule, index int) (domain.Rule, error) {
	if index < 0 || index >= len(rule.Actions) {
		return rule, outOfRange("action", index, len(rule.Actions))
	}
	out := rule.Clone()
	out.Actions = append(out.Actions[:index], out.Actions[index+1:]...)
	return out, nil
}

// UpdateAction replaces the action at index with update's result
func UpdateAction(rule domain.Rule, index int, update func(domain.Action) domain.Action) (domain.Rule, error) {
	if index < 0 || index >= len(rule.Actions) {
		return rule, outOfRange("action", index, len(rule.Actions))
	}
	out := rule.Clone()
	out.Actions[index] = update(out.Actions[index])
	return out, nil
}

// SetActionType switches the action's type and clears the fields the new type does not use
func SetActionType(rule domain.Rule, index int, at domain.ActionType) (domain.Rule, error) {
	return UpdateAction(rule, index, func(a domain.Action) domain.Action {
		a.Action = at
		return a.Normalized()
	})
}

// MoveAction reorders actions. Order matters: actions run in sequence.
func MoveAction(rule domain.Rule, from, to int) (domain.Rule, error) {
	n := len(rule.Actions)
	if from < 0 || from >= n {
		return rule, outOfRange("action", from, n)
	}
	if to < 0 || to >= n {
		return rule, outOfRange("action", to, n)
	}
	out := rule.Clone()
	out.Actions = move(out.Actions, from, to)
	return out, nil
}
