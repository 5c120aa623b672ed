// Package docs holds the OpenAPI description of the console API served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "description": "Aggregated health of the Virtualpaper backend, document cache and test sessions; 503 only when unhealthy",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Healthy or degraded", "schema": {"$ref": "#/definitions/domain.SystemHealth"}},
                    "503": {"description": "Unhealthy", "schema": {"$ref": "#/definitions/domain.SystemHealth"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Cache, test session, health and process metrics",
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "Runtime metrics",
                "responses": {
                    "200": {"description": "Metrics", "schema": {"type": "object"}}
                }
            }
        },
        "/v1/rules": {
            "get": {
                "description": "Returns one page of processing rules in execution order with the total count",
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "List rules",
                "parameters": [
                    {"type": "integer", "default": 1, "description": "Page, 1-based", "name": "page", "in": "query"},
                    {"maximum": 200, "type": "integer", "default": 25, "description": "Rules per page", "name": "page_size", "in": "query"},
                    {"type": "string", "default": "id", "description": "Sort field", "name": "sort", "in": "query"},
                    {"enum": ["ASC", "DESC"], "type": "string", "description": "Sort order", "name": "order", "in": "query"},
                    {"type": "string", "description": "Free text filter", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Rules page", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid query parameters", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "401": {"description": "Backend token rejected", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Validates and normalizes a rule, then creates it in Virtualpaper",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Create a rule",
                "parameters": [
                    {"description": "Rule to create", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Rule"}}
                ],
                "responses": {
                    "201": {"description": "Created rule", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/types": {
            "get": {
                "description": "Returns the condition and action type tables with the fields each type needs, plus triggers and match modes",
                "produces": ["application/json"],
                "tags": ["Editor"],
                "summary": "List condition and action types",
                "responses": {
                    "200": {"description": "Type tables", "schema": {"$ref": "#/definitions/api.SuccessResponse"}}
                }
            }
        },
        "/v1/rules/draft": {
            "get": {
                "description": "Returns an unsaved rule with the editor defaults",
                "produces": ["application/json"],
                "tags": ["Editor"],
                "summary": "New rule draft",
                "responses": {
                    "200": {"description": "Draft rule", "schema": {"$ref": "#/definitions/api.SuccessResponse"}}
                }
            }
        },
        "/v1/rules/validate": {
            "post": {
                "description": "Reports field errors for a rule without saving it",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Editor"],
                "summary": "Validate a rule",
                "parameters": [
                    {"description": "Rule to validate", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Rule"}}
                ],
                "responses": {
                    "200": {"description": "Validation result", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/editor": {
            "post": {
                "description": "Applies one form transition to a rule and returns the new rule with its field errors",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Editor"],
                "summary": "Apply an editor operation",
                "parameters": [
                    {"description": "Current rule and operation", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.EditorRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated rule", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid operation or index out of range", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/preview": {
            "post": {
                "description": "Evaluates an unsaved rule locally against a freshly loaded document and returns the report with the document before and after",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Preview a draft rule",
                "parameters": [
                    {"description": "Draft rule and probe document", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.PreviewRequest"}}
                ],
                "responses": {
                    "200": {"description": "Preview", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "No document given", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/export": {
            "get": {
                "description": "Downloads every rule as a YAML or JSON bundle without server IDs",
                "produces": ["application/x-yaml", "application/json"],
                "tags": ["Bundles"],
                "summary": "Export rules",
                "parameters": [
                    {"enum": ["yaml", "json"], "type": "string", "default": "yaml", "description": "Bundle format", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Rule bundle", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/import": {
            "post": {
                "description": "Validates every rule of a bundle, then creates them in order without their IDs, stopping at the first rejected rule",
                "consumes": ["application/x-yaml", "application/json"],
                "produces": ["application/json"],
                "tags": ["Bundles"],
                "summary": "Import rules",
                "parameters": [
                    {"enum": ["yaml", "json"], "type": "string", "description": "Bundle format, defaults from Content-Type", "name": "format", "in": "query"},
                    {"type": "boolean", "description": "Validate only", "name": "dry_run", "in": "query"},
                    {"description": "Rule bundle", "name": "bundle", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ruleio.Bundle"}}
                ],
                "responses": {
                    "200": {"description": "Dry run result", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "201": {"description": "Created rules", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Undecodable bundle", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Invalid rules, nothing created", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/reorder": {
            "put": {
                "description": "Sets the execution order of all rules",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Reorder rules",
                "parameters": [
                    {"description": "Rule IDs in the new order", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.ReorderRequest"}}
                ],
                "responses": {
                    "200": {"description": "New order", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "422": {"description": "Empty or duplicate IDs", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/{id}": {
            "get": {
                "description": "Loads a rule, flagging condition and action rows whose type this console does not know",
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Get a rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Rule", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid rule ID", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Rule not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            },
            "put": {
                "description": "Validates and normalizes a rule, then saves it; the path ID wins over the body",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Update a rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true},
                    {"description": "Rule fields", "name": "rule", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.Rule"}}
                ],
                "responses": {
                    "200": {"description": "Updated rule", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "400": {"description": "Invalid request payload", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "404": {"description": "Rule not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["Rules"],
                "summary": "Delete a rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Rule deleted", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Rule not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/{id}/test": {
            "post": {
                "description": "Runs a stored rule against a probe document on the server and interprets the result row by row. Nothing is changed.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Test a rule",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true},
                    {"description": "Probe document", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.TestRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Interpreted test report", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Rule or document not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Document ID missing", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/rules/{id}/test-sessions": {
            "post": {
                "description": "Loads a rule and opens a test dialog session for it",
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Open a test session",
                "parameters": [
                    {"type": "integer", "description": "Rule ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "201": {"description": "Session opened", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Rule not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "429": {"description": "Too many open sessions", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/test-sessions/{sid}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Get a test session",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Test session ID", "name": "sid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Session state and last report", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Closes the dialog session and cancels a test in flight",
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Close a test session",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Test session ID", "name": "sid", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "Session closed", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Session not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/v1/test-sessions/{sid}/run": {
            "post": {
                "description": "At most one test runs per session; a failed run keeps the previous report",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Testing"],
                "summary": "Run a test in a session",
                "parameters": [
                    {"type": "string", "format": "uuid", "description": "Test session ID", "name": "sid", "in": "path", "required": true},
                    {"description": "Probe document", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/domain.TestRuleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Interpreted test report", "schema": {"$ref": "#/definitions/api.SuccessResponse"}},
                    "404": {"description": "Session or document not found", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "409": {"description": "A test is already running", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "410": {"description": "Session closed while running", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Virtualpaper rejected the request or is unreachable", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "description": "Standard error response format",
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "error"},
                "code": {"type": "string", "example": "VALIDATION_FAILED"},
                "message": {"type": "string", "example": "Rule validation failed"},
                "details": {},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"}
            }
        },
        "api.SuccessResponse": {
            "description": "Standard success response format",
            "type": "object",
            "properties": {
                "status": {"type": "string", "example": "success"},
                "data": {}
            }
        },
        "domain.SystemHealth": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["healthy", "degraded", "unhealthy"]},
                "timestamp": {"type": "string"},
                "components": {"type": "object"},
                "uptime": {"type": "integer", "description": "nanoseconds"}
            }
        },
        "api.EditorRequest": {
            "type": "object",
            "properties": {
                "rule": {"$ref": "#/definitions/domain.Rule"},
                "op": {"$ref": "#/definitions/editor.Op"}
            }
        },
        "api.PreviewRequest": {
            "type": "object",
            "properties": {
                "rule": {"$ref": "#/definitions/domain.Rule"},
                "document_id": {"type": "string"},
                "document": {"$ref": "#/definitions/domain.Document"}
            }
        },
        "api.ReorderRequest": {
            "type": "object",
            "required": ["ids"],
            "properties": {
                "ids": {"type": "array", "minItems": 1, "items": {"type": "integer"}}
            }
        },
        "domain.MetadataRef": {
            "type": "object",
            "properties": {
                "key_id": {"type": "integer"},
                "value_id": {"type": "integer"}
            }
        },
        "domain.Condition": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "enabled": {"type": "boolean"},
                "case_insensitive": {"type": "boolean"},
                "inverted": {"type": "boolean"},
                "is_regex": {"type": "boolean"},
                "condition_type": {"type": "string", "example": "name_contains"},
                "value": {"type": "string"},
                "date_fmt": {"type": "string"},
                "metadata": {"$ref": "#/definitions/domain.MetadataRef"}
            }
        },
        "domain.Action": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "enabled": {"type": "boolean"},
                "on_condition": {"type": "boolean"},
                "action": {"type": "string", "example": "metadata_add"},
                "value": {"type": "string"},
                "metadata": {"$ref": "#/definitions/domain.MetadataRef"}
            }
        },
        "domain.Rule": {
            "type": "object",
            "required": ["name", "mode"],
            "properties": {
                "id": {"type": "integer"},
                "name": {"type": "string", "maxLength": 250},
                "description": {"type": "string"},
                "enabled": {"type": "boolean"},
                "triggers": {"type": "array", "items": {"type": "string", "enum": ["document-create", "document-update"]}},
                "mode": {"type": "string", "enum": ["match_all", "match_any"]},
                "conditions": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/domain.Condition"}},
                "actions": {"type": "array", "minItems": 1, "items": {"$ref": "#/definitions/domain.Action"}},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "domain.Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "content": {"type": "string"},
                "date": {"type": "integer", "description": "unix milliseconds"},
                "metadata": {"type": "array", "items": {"type": "object"}}
            }
        },
        "domain.TestRuleRequest": {
            "type": "object",
            "required": ["document_id"],
            "properties": {
                "document_id": {"type": "string"}
            }
        },
        "editor.Op": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "example": "add_condition"},
                "index": {"type": "integer"},
                "to": {"type": "integer"},
                "text": {"type": "string"},
                "enabled": {"type": "boolean"},
                "mode": {"type": "string"},
                "triggers": {"type": "array", "items": {"type": "string"}},
                "condition_type": {"type": "string"},
                "action_type": {"type": "string"},
                "condition": {"$ref": "#/definitions/domain.Condition"},
                "action": {"$ref": "#/definitions/domain.Action"}
            }
        },
        "ruleio.Bundle": {
            "type": "object",
            "properties": {
                "version": {"type": "integer"},
                "exported_at": {"type": "string"},
                "rules": {"type": "array", "items": {"$ref": "#/definitions/domain.Rule"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Virtualpaper Rule Console API",
	Description:      "Backend for editing, validating and testing Virtualpaper processing rules",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
