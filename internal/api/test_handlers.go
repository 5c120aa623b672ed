package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/tester"
)

// PreviewRequest asks for a local evaluation of a draft rule. Either a
// document id to load or an inline document must be given.
type PreviewRequest struct {
	Rule       domain.Rule      `json:"rule"`
	DocumentID string           `json:"document_id"`
	Document   *domain.Document `json:"document,omitempty"`
}

// SessionView is what the test dialog polls
type SessionView struct {
	SessionID string          `json:"session_id"`
	RuleID    int             `json:"rule_id"`
	Running   bool            `json:"running"`
	Last      *tester.Outcome `json:"last"`
}

// TestRuleHandler handles POST /v1/rules/:id/test requests
// @Summary      Test a rule
// @Description  Runs a stored rule against a probe document on the server and interprets the result row by row. Nothing is changed.
// @Tags         Testing
// @Accept       json
// @Produce      json
// @Param        id path int true "Rule ID"
// @Param        request body domain.TestRuleRequest true "Probe document"
// @Success      200 {object} SuccessResponse{data=tester.Outcome} "Interpreted test report"
// @Failure      404 {object} ErrorResponse "Rule or document not found"
// @Failure      422 {object} ErrorResponse "Document ID missing"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/{id}/test [post]
func (h *Handlers) TestRuleHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	ruleID, appErr := ruleIDParam(c)
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	req, appErr := h.parseTestRequest(c, "test_rule_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	session, err := h.sessions.Open(ctx, ruleID)
	if err != nil {
		return h.fail(c, err, "test_rule_load")
	}
	defer func() {
		_ = h.sessions.Close(session.ID())
	}()

	outcome, err := session.Run(ctx, req.DocumentID)
	if err != nil {
		return h.fail(c, err, "test_rule")
	}

	log.Debug().
		Int("rule_id", ruleID).
		Str("document_id", req.DocumentID).
		Bool("matched", outcome.Report.Matched).
		Bool("degraded", outcome.Report.Degraded).
		Msg("Rule tested")

	return success(c, 200, outcome)
}

// PreviewHandler handles POST /v1/rules/preview requests
// @Summary      Preview a draft rule
// @Description  Evaluates an unsaved rule locally against a freshly loaded document and returns the report with the document before and after
// @Tags         Testing
// @Accept       json
// @Produce      json
// @Param        request body PreviewRequest true "Draft rule and probe document"
// @Success      200 {object} SuccessResponse{data=object{report=domain.TestReport,before=domain.Document,after=domain.Document,warnings=[]string}} "Preview"
// @Failure      400 {object} ErrorResponse "Invalid request payload"
// @Failure      422 {object} ErrorResponse "No document given"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/preview [post]
func (h *Handlers) PreviewHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req PreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return h.sendError(c, invalidPayload(err).WithContext(ctx, "preview_parsing"))
	}

	doc := req.Document
	if doc == nil {
		id := strings.TrimSpace(req.DocumentID)
		if id == "" {
			return h.sendError(c, domain.NewAppError(
				domain.ErrValidationFailed,
				"Pick a document to preview against",
				422,
				map[string]any{"fields": []domain.FieldError{{
					Field:   "document_id",
					Code:    domain.FieldRequired,
					Message: "document_id or document is required",
				}}},
			).WithContext(ctx, "preview_validation"))
		}

		// Previews are edited against the current document, never a cached copy
		resolved, err := tester.RefreshDocument(ctx, h.backend, h.cache, id)
		if err != nil {
			return h.fail(c, err, "preview_document")
		}
		doc = resolved
	}

	outcome, err := h.evaluator.Evaluate(&req.Rule, doc)
	if err != nil {
		return h.fail(c, err, "preview_evaluate")
	}

	report, err := domain.Interpret(&req.Rule, outcome.Result)
	var warnings []string
	if err != nil {
		warnings = append(warnings, err.Error())
	}

	return success(c, 200, map[string]any{
		"report":   report,
		"before":   doc,
		"after":    outcome.Document,
		"warnings": warnings,
	})
}

// OpenTestSessionHandler handles POST /v1/rules/:id/test-sessions requests
// @Summary      Open a test session
// @Description  Loads a rule and opens a test dialog session for it
// @Tags         Testing
// @Produce      json
// @Param        id path int true "Rule ID"
// @Success      201 {object} SuccessResponse{data=object{session_id=string,rule=domain.Rule}} "Session opened"
// @Failure      404 {object} ErrorResponse "Rule not found"
// @Failure      429 {object} ErrorResponse "Too many open sessions"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/{id}/test-sessions [post]
func (h *Handlers) OpenTestSessionHandler(c *fiber.Ctx) error {
	ruleID, appErr := ruleIDParam(c)
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	session, err := h.sessions.Open(c.UserContext(), ruleID)
	if err != nil {
		return h.fail(c, err, "open_test_session")
	}

	return success(c, 201, map[string]any{
		"session_id": session.ID(),
		"rule":       session.Rule(),
	})
}

// GetTestSessionHandler handles GET /v1/test-sessions/:sid requests
// @Summary      Get a test session
// @Tags         Testing
// @Produce      json
// @Param        sid path string true "Test session ID" format(uuid)
// @Success      200 {object} SuccessResponse{data=SessionView} "Session state and last report"
// @Failure      404 {object} ErrorResponse "Session not found"
// @Router       /v1/test-sessions/{sid} [get]
func (h *Handlers) GetTestSessionHandler(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return h.fail(c, err, "get_test_session")
	}

	return success(c, 200, SessionView{
		SessionID: session.ID(),
		RuleID:    session.Rule().ID,
		Running:   session.Running(),
		Last:      session.Last(),
	})
}

// RunTestSessionHandler handles POST /v1/test-sessions/:sid/run requests
// @Summary      Run a test in a session
// @Description  At most one test runs per session; a failed run keeps the previous report
// @Tags         Testing
// @Accept       json
// @Produce      json
// @Param        sid path string true "Test session ID" format(uuid)
// @Param        request body domain.TestRuleRequest true "Probe document"
// @Success      200 {object} SuccessResponse{data=tester.Outcome} "Interpreted test report"
// @Failure      404 {object} ErrorResponse "Session or document not found"
// @Failure      409 {object} ErrorResponse "A test is already running"
// @Failure      410 {object} ErrorResponse "Session closed while running"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/test-sessions/{sid}/run [post]
func (h *Handlers) RunTestSessionHandler(c *fiber.Ctx) error {
	session, err := h.sessions.Get(c.Params("sid"))
	if err != nil {
		return h.fail(c, err, "run_test_session")
	}

	req, appErr := h.parseTestRequest(c, "run_test_session_parsing")
	if appErr != nil {
		return h.sendError(c, appErr)
	}

	outcome, err := session.Run(c.UserContext(), req.DocumentID)
	if err != nil {
		return h.fail(c, err, "run_test_session")
	}

	return success(c, 200, outcome)
}

// CloseTestSessionHandler handles DELETE /v1/test-sessions/:sid requests
// @Summary      Close a test session
// @Description  Closes the dialog session and cancels a test in flight
// @Tags         Testing
// @Produce      json
// @Param        sid path string true "Test session ID" format(uuid)
// @Success      200 {object} SuccessResponse{data=object{session_id=string,closed=bool}} "Session closed"
// @Failure      404 {object} ErrorResponse "Session not found"
// @Router       /v1/test-sessions/{sid} [delete]
func (h *Handlers) CloseTestSessionHandler(c *fiber.Ctx) error {
	sid := c.Params("sid")
	if err := h.sessions.Close(sid); err != nil {
		return h.fail(c, err, "close_test_session")
	}

	return success(c, 200, map[string]any{
		"session_id": sid,
		"closed":     true,
	})
}

func (h *Handlers) parseTestRequest(c *fiber.Ctx, operation string) (domain.TestRuleRequest, *domain.AppError) {
	var req domain.TestRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return req, invalidPayload(err).WithContext(c.UserContext(), operation)
	}
	req.DocumentID = strings.TrimSpace(req.DocumentID)

	if err := h.requests.Struct(req); err != nil {
		return req, domain.NewAppError(
			domain.ErrValidationFailed,
			"Pick a document to test against",
			422,
			map[string]any{"fields": []domain.FieldError{{
				Field:   "document_id",
				Code:    domain.FieldRequired,
				Message: "document_id is required",
			}}},
		).WithContext(c.UserContext(), operation)
	}
	return req, nil
}
