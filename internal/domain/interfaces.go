package domain

import "context"

// Resource names understood by the data provider
const (
	ResourceRules        = "rules"
	ResourceDocuments    = "documents"
	ResourceMetadataKeys = "metadata_keys"
)

// Pagination selects one page of a list, 1-based
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Sort orders a list by one field
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"` // ASC or DESC
}

// ListParams are the parameters of getList
type ListParams struct {
	Pagination Pagination
	Sort       Sort
	Filter     map[string]any
}

// ReferenceParams are the parameters of getManyReference
type ReferenceParams struct {
	Target     string
	ID         string
	Pagination Pagination
	Sort       Sort
	Filter     map[string]any
}

// DataProvider is the generic resource access the console is built on.
// Records are decoded into out, which must be a pointer.
type DataProvider interface {
	Get(ctx context.Context, resource, id string, out any) error
	GetList(ctx context.Context, resource string, params ListParams, out any) (total int, err error)
	GetManyReference(ctx context.Context, resource string, params ReferenceParams, out any) (total int, err error)
	Create(ctx context.Context, resource string, data any, out any) error
	Update(ctx context.Context, resource, id string, data any, out any) error
	Delete(ctx context.Context, resource, id string, out any) error
}

// RuleService holds the rule-specific extensions of the backend API
type RuleService interface {
	TestRule(ctx context.Context, ruleID int, req TestRuleRequest) (*RuleTestResult, error)
	ReorderRules(ctx context.Context, ids []int) error
}

// Backend is everything the console needs from Virtualpaper
type Backend interface {
	DataProvider
	RuleService
	HealthCheck(ctx context.Context) HealthStatus
}

// DocumentCache keeps recently resolved probe documents
type DocumentCache interface {
	Get(key string) (*Document, bool)
	Set(key string, doc *Document)
	Invalidate(key string)
	Clear()
	Stats() CacheStats

	// Health and monitoring
	HealthCheck(ctx context.Context) HealthStatus
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
	CheckComponent(ctx context.Context, component string) HealthStatus
}

// Validator defines the interface for rule validation
type Validator interface {
	ValidateRule(rule *Rule) ValidationResult
	ValidateCondition(c Condition) ValidationResult
	ValidateAction(a Action) ValidationResult
}

// NewValidator creates the default rule validator
func NewValidator() Validator {
	return NewRuleValidator()
}
