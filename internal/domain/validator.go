package domain

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field error codes
const (
	FieldRequired    = "required"
	FieldUnknownType = "unknown_type"
	FieldInvalid     = "invalid"
)

// FieldError is one problem attached to one form field
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult collects field-level problems without aborting on the first one
type ValidationResult struct {
	Errors []FieldError `json:"errors"`
}

// Valid reports whether no field errors were found
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// ForField returns the errors attached to a field path
func (r ValidationResult) ForField(field string) []FieldError {
	var out []FieldError
	for _, e := range r.Errors {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

// Err converts the result into a VALIDATION_FAILED error, or nil when valid
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return NewAppError(ErrValidationFailed, "Rule validation failed", 422, map[string]any{
		"fields": r.Errors,
	})
}

func (r *ValidationResult) add(field, code, message string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}

func (r *ValidationResult) merge(prefix string, other ValidationResult) {
	for _, e := range other.Errors {
		e.Field = prefix + "." + e.Field
		r.Errors = append(r.Errors, e)
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ValidateCondition checks that the fields the condition type needs are populated
func ValidateCondition(c Condition) ValidationResult {
	var res ValidationResult

	spec, err := LookupCondition(c.ConditionType)
	if err != nil {
		res.add("condition_type", FieldUnknownType, fmt.Sprintf("unsupported condition type %q", c.ConditionType))
		return res
	}

	if spec.NeedsValue && blank(c.Value) {
		res.add("value", FieldRequired, "value is required")
	}
	if spec.NeedsDateFmt && blank(c.DateFmt) {
		res.add("date_fmt", FieldRequired, "date format is required for date conditions")
	}
	if spec.NeedsMetadataKey && c.Metadata.KeyID <= 0 {
		res.add("metadata.key_id", FieldRequired, "metadata key is required")
	}
	if spec.NeedsMetadataValue && c.Metadata.ValueID <= 0 {
		res.add("metadata.value_id", FieldRequired, "metadata value is required")
	}
	return res
}

// ValidateAction checks that the fields the action type needs are populated
func ValidateAction(a Action) ValidationResult {
	var res ValidationResult

	spec, err := LookupAction(a.Action)
	if err != nil {
		res.add("action", FieldUnknownType, fmt.Sprintf("unsupported action type %q", a.Action))
		return res
	}

	if spec.NeedsValue && blank(a.Value) {
		res.add("value", FieldRequired, "value is required")
	}
	if spec.NeedsMetadataKey && a.Metadata.KeyID <= 0 {
		res.add("metadata.key_id", FieldRequired, "metadata key is required")
	}
	if spec.NeedsMetadataValue && a.Metadata.ValueID <= 0 {
		res.add("metadata.value_id", FieldRequired, "metadata value is required")
	}
	return res
}

// checkConditionFormat catches values the server would reject outright
func checkConditionFormat(c Condition) ValidationResult {
	var res ValidationResult
	spec, err := LookupCondition(c.ConditionType)
	if err != nil || blank(c.Value) {
		return res
	}
	if spec.TextModifiers && c.IsRegex {
		if _, err := regexp.Compile(c.Value); err != nil {
			res.add("value", FieldInvalid, fmt.Sprintf("invalid regular expression: %v", err))
		}
	}
	if spec.NeedsDateFmt {
		if _, err := regexp.Compile(c.Value); err != nil {
			res.add("value", FieldInvalid, fmt.Sprintf("invalid date regular expression: %v", err))
		}
	}
	if spec.NumericValue {
		if _, err := strconv.Atoi(strings.TrimSpace(c.Value)); err != nil {
			res.add("value", FieldInvalid, "value must be a whole number")
		}
	}
	return res
}

// RuleValidator validates whole rules: struct tags first, then every row
type RuleValidator struct {
	structs *validator.Validate
}

// NewRuleValidator creates a validator that reports JSON field names
func NewRuleValidator() *RuleValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RuleValidator{structs: v}
}

// ValidateRule validates the rule document and each of its conditions and actions
func (v *RuleValidator) ValidateRule(rule *Rule) ValidationResult {
	var res ValidationResult
	if rule == nil {
		res.add("rule", FieldRequired, "rule is required")
		return res
	}

	if strings.TrimSpace(rule.Name) == "" && rule.Name != "" {
		res.add("name", FieldRequired, "name is required")
	}

	if err := v.structs.Struct(rule); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				res.add(structFieldPath(fe), fe.Tag(), describeTag(fe))
			}
		} else {
			res.add("rule", FieldInvalid, err.Error())
		}
	}

	for i, c := range rule.Conditions {
		prefix := fmt.Sprintf("conditions[%d]", i)
		res.merge(prefix, ValidateCondition(c))
		res.merge(prefix, checkConditionFormat(c))
	}
	for i, a := range rule.Actions {
		res.merge(fmt.Sprintf("actions[%d]", i), ValidateAction(a))
	}
	return res
}

// ValidateCondition satisfies Validator
func (v *RuleValidator) ValidateCondition(c Condition) ValidationResult {
	return ValidateCondition(c)
}

// ValidateAction satisfies Validator
func (v *RuleValidator) ValidateAction(a Action) ValidationResult {
	return ValidateAction(a)
}

// structFieldPath drops the root struct name: "Rule.triggers[0]" -> "triggers[0]"
func structFieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
	}
}
