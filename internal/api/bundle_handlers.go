package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/ruleio"
)

// ImportFailure reports one bundle rule that did not make it to the backend
type ImportFailure struct {
	Index   int                 `json:"index"`
	Name    string              `json:"name"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// ExportRulesHandler handles GET /v1/rules/export requests
// @Summary      Export rules
// @Description  Downloads every rule as a YAML or JSON bundle without server IDs
// @Tags         Bundles
// @Produce      application/x-yaml
// @Produce      json
// @Param        format query string false "Bundle format" Enums(yaml, json) default(yaml)
// @Success      200 {file} file "Rule bundle"
// @Failure      400 {object} ErrorResponse "Unsupported format"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/export [get]
func (h *Handlers) ExportRulesHandler(c *fiber.Ctx) error {
	format, err := ruleio.ParseFormat(c.Query("format"))
	if err != nil {
		return h.fail(c, err, "export_rules_format")
	}

	rules, err := ruleio.FetchAll(c.UserContext(), h.backend)
	if err != nil {
		return h.fail(c, err, "export_rules")
	}

	data, err := ruleio.Encode(ruleio.NewBundle(rules, time.Now()), format)
	if err != nil {
		return h.fail(c, err, "export_rules_encode")
	}

	log.Info().
		Str("request_id", requestIDFrom(c)).
		Int("rules", len(rules)).
		Str("format", string(format)).
		Msg("Rules exported")

	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="rules.%s"`, format))
	return c.Status(200).Send(data)
}

// ImportRulesHandler handles POST /v1/rules/import requests.
// @Summary      Import rules
// @Description  Validates every rule of a bundle, then creates them in order without their IDs, stopping at the first rejected rule
// @Tags         Bundles
// @Accept       application/x-yaml
// @Accept       json
// @Produce      json
// @Param        format query string false "Bundle format, defaults from Content-Type" Enums(yaml, json)
// @Param        dry_run query bool false "Validate only"
// @Param        bundle body ruleio.Bundle true "Rule bundle"
// @Success      200 {object} SuccessResponse{data=object{dry_run=bool,count=int}} "Dry run result"
// @Success      201 {object} SuccessResponse{data=object{rules=[]domain.Rule,count=int}} "Created rules"
// @Failure      400 {object} ErrorResponse "Undecodable bundle"
// @Failure      422 {object} ErrorResponse "Invalid rules, nothing created"
// @Failure      502 {object} ErrorResponse "Virtualpaper rejected the request or is unreachable"
// @Router       /v1/rules/import [post]
func (h *Handlers) ImportRulesHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()

	format, err := ruleio.ParseFormat(c.Query("format", formatFromContentType(c.Get(fiber.HeaderContentType))))
	if err != nil {
		return h.fail(c, err, "import_rules_format")
	}

	rules, err := ruleio.Decode(c.Body(), format)
	if err != nil {
		return h.fail(c, err, "import_rules_decode")
	}

	var invalid []ImportFailure
	for i := range rules {
		result := h.validator.ValidateRule(&rules[i])
		if !result.Valid() {
			invalid = append(invalid, ImportFailure{
				Index:   i,
				Name:    rules[i].Name,
				Code:    domain.ErrValidationFailed,
				Message: "Rule validation failed",
				Fields:  result.Errors,
			})
		}
	}
	if len(invalid) > 0 {
		return h.sendError(c, domain.NewAppError(
			domain.ErrValidationFailed,
			fmt.Sprintf("%d of %d rules failed validation", len(invalid), len(rules)),
			422,
			map[string]any{"rules": invalid},
		).WithContext(ctx, "import_rules_validation"))
	}

	if c.QueryBool("dry_run") {
		return success(c, 200, map[string]any{
			"dry_run": true,
			"count":   len(rules),
		})
	}

	created := make([]domain.Rule, 0, len(rules))
	for i, rule := range rules {
		var out domain.Rule
		if err := h.backend.Create(ctx, domain.ResourceRules, domain.NormalizeForCreate(rule), &out); err != nil {
			log.Error().Err(err).Int("index", i).Str("name", rule.Name).Msg("Failed to import rule")

			failure := ImportFailure{Index: i, Name: rule.Name, Code: domain.ErrInternal, Message: err.Error()}
			status := 500
			if appErr, ok := domain.AsAppError(err); ok {
				failure.Code = appErr.Code
				failure.Message = appErr.Message
				status = appErr.StatusCode
			}
			// Rules before the failing one stay created
			return h.sendError(c, domain.NewAppErrorWithCause(
				failure.Code,
				fmt.Sprintf("Import stopped at rule %d of %d", i+1, len(rules)),
				status,
				err,
				map[string]any{"created": created, "failed": failure},
			).WithContext(ctx, "import_rules"))
		}
		created = append(created, out)
	}

	log.Info().Str("request_id", requestIDFrom(c)).Int("rules", len(created)).Msg("Rules imported")
	return success(c, 201, map[string]any{
		"rules": created,
		"count": len(created),
	})
}

func formatFromContentType(contentType string) string {
	if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
		return string(ruleio.FormatJSON)
	}
	return string(ruleio.FormatYAML)
}
