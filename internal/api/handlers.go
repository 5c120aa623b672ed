package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/editor"
	"github.com/virtualpaper/console/internal/evaluator"
	"github.com/virtualpaper/console/internal/tester"
)

// Handlers contains all HTTP handlers for the rule console API
type Handlers struct {
	backend       domain.Backend
	cache         domain.DocumentCache
	validator     domain.Validator
	healthChecker domain.HealthChecker
	sessions      *tester.Manager
	evaluator     *evaluator.Evaluator

	// request body validation
	requests *validator.Validate
}

// NewHandlers creates a new instance of API handlers
func NewHandlers(deps RouterDependencies) *Handlers {
	h := &Handlers{
		backend:       deps.Backend,
		cache:         deps.Cache,
		validator:     deps.Validator,
		healthChecker: deps.HealthChecker,
		sessions:      deps.Sessions,
		evaluator:     deps.Evaluator,
		requests:      validator.New(),
	}
	if h.validator == nil {
		h.validator = domain.NewValidator()
	}
	if h.evaluator == nil {
		h.evaluator = evaluator.New()
	}
	if h.sessions == nil && h.backend != nil {
		h.sessions = tester.NewManager(h.backend, h.cache, tester.DefaultConfig())
	}
	return h
}

// ErrorResponse represents the standard error response format
// @Description Standard error response format
type ErrorResponse struct {
	Status    string `json:"status" example:"error"`
	Code      string `json:"code" example:"VALIDATION_FAILED"`
	Message   string `json:"message" example:"Rule validation failed"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// SuccessResponse represents the standard success response format
// @Description Standard success response format
type SuccessResponse struct {
	Status string `json:"status" example:"success"`
	Data   any    `json:"data"`
}

// EditorRequest carries the current form state and one transition
type EditorRequest struct {
	Rule domain.Rule `json:"rule"`
	Op   editor.Op   `json:"op"`
}

// ReorderRequest is the body of PUT /v1/rules/reorder
type ReorderRequest struct {
	IDs []int `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// RuleView is a rule as shown in the editor, with the rows it cannot edit flagged
type RuleView struct {
	Rule                  domain.Rule `json:"rule"`
	UnsupportedConditions []int       `json:"unsupported_conditions"`
	UnsupportedActions    []int       `json:"unsupported_actions"`
}

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

func newRuleView(rule domain.Rule) RuleView {
	view := RuleView{
		Rule:                  rule,
		UnsupportedConditions: []int{},
		UnsupportedActions:    []int{},
	}
	for i, c := range rule.Conditions {
		if !c.ConditionType.Supported() {
			view.UnsupportedConditions = append(view.UnsupportedConditions, i)
		}
	}
	for i, a := range rule.Actions {
		if !a.Action.Supported() {
			view.UnsupportedActions = append(view.UnsupportedActions, i)
		}
	}
	return view
}

func success(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Status: "success", Data: data})
}

// ListRulesHandler handles GET /v1/rules requests
// @Summary      List rules
// @Description  Returns one page of processing rules in execution order with the total count
// @Tags         Rules
// @Produce      json
// @Param        page query int false "Page, 1-based" default(1)
// @Param        page_size query int false "Rules per page" default(25) maximum(200)
// @Param        sort query string false "Sort field" default(id)
// @Param        order query string false "Sort order" Enums(ASC, DESC)
// @Param        q query string false "Free text filter"
// @Success      200 {object} SuccessResponse{data=object{rules=[]domain.Rule,total=int,page=int,page_size=int}} "Rules page"
// @Failure      400 {object} ErrorResponse "Invalid query parameters"
// @Failure      401 {object} ErrorResponse "Backend token rejected"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules [get]
func (h *Handlers) ListRulesHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", defaultPageSize)
	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"Invalid pagination",
			400,
			map[string]any{"page": page, "page_size": pageSize, "max_page_size": maxPageSize},
		).WithContext(ctx, "list_rules_params"))
	}

	order := strings.ToUpper(c.Query("order", "ASC"))
	if order != "ASC" && order != "DESC" {
		return h.sendError(c, domain.NewAppError(
			domain.ErrInvalidInput,
			"order must be ASC or DESC",
			400,
			map[string]string{"field": "order"},
		).WithContext(ctx, "list_rules_params"))
	}

	params := domain.ListParams{
		Pagination: domain.Pagination{Page: page, PerPage: pageSize},
		Sort:       domain.Sort{Field: c.Query("sort", "id"), Order: order},
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		params.Filter = map[string]any{"q": q}
	}

	var rules []domain.Rule
	total, err := h.backend.GetList(ctx, domain.ResourceRules, params, &rules)
	if err != nil {
		return h.fail(c, err, "list_rules")
	}
	if rules == nil {
		rules = []domain.Rule{}
	}

	return success(c, 200, map[string]any{
		"rules":     rules,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// RuleTypesHandler handles GET /v1/rules/types requests
// @Summary      List condition and action types
// @Description  Returns the condition and action type tables with the fields each type needs, plus triggers and match modes
// @Tags         Editor
// @Produce      json
// @Success      200 {object} SuccessResponse{data=object{conditions=[]domain.ConditionSpec,actions=[]domain.ActionSpec,triggers=[]string,modes=[]string}} "Type tables"
// @Router       /v1/rules/types [get]
func (h *Handlers) RuleTypesHandler(c *fiber.Ctx) error {
	return success(c, 200, map[string]any{
		"conditions": domain.ConditionTypes(),
		"actions":    domain.ActionTypes(),
		"triggers":   domain.Triggers(),
		"modes":      []domain.MatchMode{domain.MatchAll, domain.MatchAny},
	})
}

// DraftRuleHandler handles GET /v1/rules/draft requests
// @Summary      New rule draft
// @Description  Returns an unsaved rule with the editor defaults
// @Tags         Editor
// @Produce      json
// @Success      200 {object} SuccessResponse{data=object{rule=domain.Rule}} "Draft rule"
// @Router       /v1/rules/draft [get]
func (h *Handlers) DraftRuleHandler(c *fiber.Ctx) error {
	return success(c, 200, map[string]any{"rule": domain.NewRule()})
}

// ValidateRuleHandler handles POST /v1/rules/validate requests
// @Summary      Validate a rule
// @Description  Reports field errors for a rule without saving it
// @Tags         Editor
// @Accept       json
// @Produce      json
// @Param        rule body domain.Rule true "Rule to validate"
// @Success      200 {object} SuccessResponse{data=object{valid=bool,errors=[]domain.FieldError}} "Validation result"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Router       /v1/rules/validate [post]
func (h *Handlers) ValidateRuleHandler(c *fiber.Ctx) error {
	rule, appErr := parseRule(c, "validate_rule_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	result := h.validator.ValidateRule(rule)
	return success(c, 200, map[string]any{
		"valid":  result.Valid(),
		"errors": fieldErrors(result),
	})
}

// EditorHandler handles POST /v1/rules/editor requests
// @Summary      Apply an editor operation
// @Description  Applies one form transition to a rule and returns the new rule with its field errors
// @Tags         Editor
// @Accept       json
// @Produce      json
// @Param        request body EditorRequest true "Current rule and operation"
// @Success      200 {object} SuccessResponse{data=object{rule=domain.Rule,valid=bool,errors=[]domain.FieldError}} "Updated rule"
// @Failure      400 {object} ErrorResponse "Invalid operation or index out of range"
// @Router       /v1/rules/editor [post]
func (h *Handlers) EditorHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req EditorRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, invalidPayload(err).WithContext(ctx, "editor_parsing"))
	}

	next, err := editor.Apply(req.Rule, req.Op)
	if err != nil {
		return h.fail(c, err, "editor_apply")
	}

	result := h.validator.ValidateRule(&next)
	return success(c, 200, map[string]any{
		"rule":   next,
		"valid":  result.Valid(),
		"errors": fieldErrors(result),
	})
}

// GetRuleHandler handles GET /v1/rules/:id requests
// @Summary      Get a rule
// @Description  Loads a rule, flagging condition and action rows whose type this console does not know
// @Tags         Rules
// @Produce      json
// @Param        id path int true "Rule ID"
// @Success      200 {object} SuccessResponse{data=RuleView} "Rule"
// @Failure      400 {object} ErrorResponse "Invalid rule ID"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/{id} [get]
func (h *Handlers) GetRuleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	ruleID, appErr := ruleIDParam(c)
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	var rule domain.Rule
	if err := h.backend.Get(ctx, domain.ResourceRules, strconv.Itoa(ruleID), &rule); err != nil {
		return h.fail(c, err, "get_rule")
	}

	return success(c, 200, newRuleView(rule))
}

// CreateRuleHandler handles POST /v1/rules requests
// @Summary      Create a rule
// @Description  Validates and normalizes a rule, then creates it in Virtualpaper
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        rule body domain.Rule true "Rule to create"
// @Success      201 {object} SuccessResponse{data=object{rule=domain.Rule}} "Created rule"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules [post]
func (h *Handlers) CreateRuleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	rule, appErr := parseRule(c, "create_rule_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}
	rule.ID = 0

	if err := h.validator.ValidateRule(rule).Err(); err != nil {
		return h.fail(c, err, "create_rule_validation")
	}

	var created domain.Rule
	if err := h.backend.Create(ctx, domain.ResourceRules, domain.NormalizeForSubmit(*rule), &created); err != nil {
		log.Error().Err(err).Str("request_id", requestIDFrom(c)).Str("name", rule.Name).Msg("Failed to create rule")
		return h.fail(c, err, "create_rule")
	}

	log.Info().Int("rule_id", created.ID).Str("name", created.Name).Msg("Rule created")
	return success(c, 201, map[string]any{"rule": created})
}

// UpdateRuleHandler handles PUT /v1/rules/:id requests
// @Summary      Update a rule
// @Description  Validates and normalizes a rule, then saves it; the path ID wins over the body
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        id path int true "Rule ID"
// @Param        rule body domain.Rule true "Rule fields"
// @Success      200 {object} SuccessResponse{data=object{rule=domain.Rule}} "Updated rule"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      422 {object} ErrorResponse "Validation failed"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/{id} [put]
func (h *Handlers) UpdateRuleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	ruleID, appErr := ruleIDParam(c)
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	rule, appErr := parseRule(c, "update_rule_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}
	rule.ID = ruleID

	if err := h.validator.ValidateRule(rule).Err(); err != nil {
		return h.fail(c, err, "update_rule_validation")
	}

	var updated domain.Rule
	if err := h.backend.Update(ctx, domain.ResourceRules, strconv.Itoa(ruleID), domain.NormalizeForSubmit(*rule), &updated); err != nil {
		log.Error().Err(err).Str("request_id", requestIDFrom(c)).Int("rule_id", ruleID).Msg("Failed to update rule")
		return h.fail(c, err, "update_rule")
	}

	return success(c, 200, map[string]any{"rule": updated})
}

// DeleteRuleHandler handles DELETE /v1/rules/:id requests
// @Summary      Delete a rule
// @Tags         Rules
// @Produce      json
// @Param        id path int true "Rule ID"
// @Success      200 {object} SuccessResponse{data=object{message=string,rule_id=int}} "Rule deleted"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/{id} [delete]
func (h *Handlers) DeleteRuleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	ruleID, appErr := ruleIDParam(c)
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	if err := h.backend.Delete(ctx, domain.ResourceRules, strconv.Itoa(ruleID), nil); err != nil {
		return h.fail(c, err, "delete_rule")
	}

	log.Info().Int("rule_id", ruleID).Msg("Rule deleted")
	return success(c, 200, map[string]any{
		"message": "Rule deleted successfully",
		"rule_id": ruleID,
	})
}

// ReorderRulesHandler handles PUT /v1/rules/reorder requests
// @Summary      Reorder rules
// @Description  Sets the execution order of all rules
// @Tags         Rules
// @Accept       json
// @Produce      json
// @Param        request body ReorderRequest true "Rule IDs in the new order"
// @Success      200 {object} SuccessResponse{data=object{ids=[]int}} "New order"
// @Failure      422 {object} ErrorResponse "Empty or duplicate IDs"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/reorder [put]
func (h *Handlers) ReorderRulesHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, invalidPayload(err).WithContext(ctx, "reorder_parsing"))
	}
	if err := h.requests.Struct(req); err != nil {
		return h.sendError(c, domain.NewAppError(
			domain.ErrValidationFailed,
			"ids must list at least one rule id",
			422,
			map[string]string{"field": "ids", "reason": err.Error()},
		).WithContext(ctx, "reorder_validation"))
	}
	seen := make(map[int]struct{}, len(req.IDs))
	for _, id := range req.IDs {
		if _, dup := seen[id]; dup {
			return h.sendError(c, domain.NewAppError(
				domain.ErrValidationFailed,
				"ids must not repeat",
				422,
				map[string]any{"field": "ids", "duplicate": id},
			).WithContext(ctx, "reorder_validation"))
		}
		seen[id] = struct{}{}
	}

	if err := h.backend.ReorderRules(ctx, req.IDs); err != nil {
		return h.fail(c, err, "reorder_rules")
	}

	return success(c, 200, map[string]any{"ids": req.IDs})
}

// HealthHandler handles GET /health requests
// @Summary      Health check
// @Description  Aggregated health of the Virtualpaper backend, document cache and test sessions; 503 only when unhealthy
// @Tags         System
// @Produce      json
// @Success      200 {object} object{status=string,timestamp=string,components=object,uptime=string} "Healthy or degraded"
// @Failure      503 {object} object{status=string,timestamp=string,components=object,uptime=string} "Unhealthy"
// @Router       /health [get]
func (h *Handlers) HealthHandler(c *fiber.Ctx) error {
	health := h.healthChecker.CheckHealth(c.UserContext())

	// Degraded still serves traffic
	status := 200
	if health.Status == domain.HealthStatusUnhealthy {
		status = 503
	}

	return c.Status(status).JSON(map[string]any{
		"status":     health.Status,
		"timestamp":  health.Timestamp.Format(time.RFC3339),
		"components": health.Components,
		"uptime":     health.Uptime.String(),
	})
}

// MetricsHandler handles GET /metrics requests
// @Summary      Runtime metrics
// @Description  Cache, test session, health and process metrics
// @Tags         System
// @Produce      json
// @Success      200 {object} object "Metrics"
// @Router       /metrics [get]
func (h *Handlers) MetricsHandler(c *fiber.Ctx) error {
	data := map[string]any{
		"uptime": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if h.cache != nil {
		stats := h.cache.Stats()
		data["cache"] = map[string]any{
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"size":      stats.Size,
			"max_size":  stats.MaxSize,
			"hit_ratio": stats.HitRatio,
		}
	}
	if h.sessions != nil {
		data["test_sessions"] = map[string]any{
			"open": h.sessions.Count(),
		}
	}
	if h.healthChecker != nil {
		health := h.healthChecker.CheckHealth(c.UserContext())
		data["health"] = health.Status
		if system, ok := health.Metrics["system"]; ok {
			data["system"] = system
		}
	}

	return success(c, 200, data)
}

func parseRule(c *fiber.Ctx, operation string) (*domain.Rule, *domain.AppError) {
	var rule domain.Rule
	if err := c.BodyParser(&rule); err != nil {
		return nil, invalidPayload(err).WithContext(c.UserContext(), operation)
	}
	return &rule, nil
}

func ruleIDParam(c *fiber.Ctx) (int, *domain.AppError) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, domain.NewAppError(
			domain.ErrInvalidInput,
			"Rule ID must be a positive integer",
			400,
			map[string]string{"field": "id", "value": raw},
		).WithContext(c.UserContext(), "rule_id_parsing")
	}
	return id, nil
}

func invalidPayload(err error) *domain.AppError {
	return domain.NewAppError(
		domain.ErrInvalidInput,
		"Invalid JSON payload",
		400,
		map[string]string{"error": err.Error()},
	)
}

func fieldErrors(result domain.ValidationResult) []domain.FieldError {
	if result.Errors == nil {
		return []domain.FieldError{}
	}
	return result.Errors
}

// fail turns any error into the error envelope
func (h *Handlers) fail(c *fiber.Ctx, err error, operation string) error {
	appErr, ok := domain.AsAppError(err)
	if !ok {
		log.Error().Err(err).Str("request_id", requestIDFrom(c)).Str("operation", operation).Msg("Unexpected error")
		appErr = domain.NewAppErrorWithCause(domain.ErrInternal, "Internal server error", 500, err, nil)
	}
	if appErr.StatusCode < 400 || appErr.StatusCode > 599 {
		appErr.StatusCode = 500
	}
	return h.sendError(c, appErr.WithContext(c.UserContext(), operation))
}

// sendError sends a standardized error response
func (h *Handlers) sendError(c *fiber.Ctx, appErr *domain.AppError) error {
	return c.Status(appErr.StatusCode).JSON(ErrorResponse{
		Status:    "error",
		Code:      appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		RequestID: appErr.RequestID,
	})
}
