package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	_ "github.com/virtualpaper/console/docs"
	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/evaluator"
	"github.com/virtualpaper/console/internal/middleware"
	"github.com/virtualpaper/console/internal/tester"
)

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	CORSOrigins    []string
	BodyLimit      int
	RateLimitRPS   int
	RateLimitBurst int
	EnableHTTPS    bool
}

// RouterDependencies contains all dependencies needed by the router
type RouterDependencies struct {
	Backend       domain.Backend
	Cache         domain.DocumentCache
	Validator     domain.Validator
	HealthChecker domain.HealthChecker
	Sessions      *tester.Manager
	Evaluator     *evaluator.Evaluator
}

// RouterResult contains the configured app and cleanup function
type RouterResult struct {
	App     *fiber.App
	Cleanup func()
}

// SetupRouter creates and configures the Fiber app with all routes and middleware
func SetupRouter(deps RouterDependencies, config RouterConfig) *RouterResult {
	app := fiber.New(fiber.Config{
		BodyLimit:    config.BodyLimit,
		ErrorHandler: customErrorHandler,
	})

	handlers := NewHandlers(deps)

	// Middleware pipeline (order is critical)

	// 1. RequestID middleware for UUID generation
	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateUUID()
		},
	}))

	// 2. Carry the request id into the context handed to the backend client
	app.Use(requestContextMiddleware())

	// 3. Structured logging middleware with zerolog
	app.Use(structuredLoggingMiddleware())

	// 4. Panic recovery middleware with stack trace logging
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error().
				Str("request_id", requestIDFrom(c)).
				Interface("panic", e).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Panic recovered")
		},
	}))

	// 5. Security headers middleware
	app.Use(securityHeadersMiddleware(config.EnableHTTPS))

	// 6. Rate limiting middleware (before CORS to limit all requests)
	var stopRateLimiter func()
	if config.RateLimitRPS > 0 {
		rateLimiter := middleware.NewRateLimiter(config.RateLimitRPS, config.RateLimitBurst)
		stopRateLimiter = rateLimiter.StartCleanupRoutine()
		app.Use(rateLimiter.Middleware())
	}

	// 7. CORS middleware with origin restrictions
	if len(config.CORSOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(config.CORSOrigins, ","),
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Request-ID",
			ExposeHeaders:    "Content-Disposition,X-Request-ID",
			AllowCredentials: false,
			MaxAge:           86400, // 24 hours
		}))
	}

	v1 := app.Group("/v1")

	// Static rule paths go before /rules/:id
	v1.Get("/rules", handlers.ListRulesHandler)
	v1.Get("/rules/types", handlers.RuleTypesHandler)
	v1.Get("/rules/draft", handlers.DraftRuleHandler)
	v1.Get("/rules/export", handlers.ExportRulesHandler)
	v1.Post("/rules/validate", handlers.ValidateRuleHandler)
	v1.Post("/rules/editor", handlers.EditorHandler)
	v1.Post("/rules/preview", handlers.PreviewHandler)
	v1.Post("/rules/import", handlers.ImportRulesHandler)
	v1.Put("/rules/reorder", handlers.ReorderRulesHandler)

	v1.Post("/rules", handlers.CreateRuleHandler)
	v1.Get("/rules/:id", handlers.GetRuleHandler)
	v1.Put("/rules/:id", handlers.UpdateRuleHandler)
	v1.Delete("/rules/:id", handlers.DeleteRuleHandler)

	// Rule testing
	v1.Post("/rules/:id/test", handlers.TestRuleHandler)
	v1.Post("/rules/:id/test-sessions", handlers.OpenTestSessionHandler)
	v1.Get("/test-sessions/:sid", handlers.GetTestSessionHandler)
	v1.Post("/test-sessions/:sid/run", handlers.RunTestSessionHandler)
	v1.Delete("/test-sessions/:sid", handlers.CloseTestSessionHandler)

	// Health and metrics endpoints
	app.Get("/health", handlers.HealthHandler)
	app.Get("/metrics", handlers.MetricsHandler)

	// API documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	cleanup := func() {
		if stopRateLimiter != nil {
			stopRateLimiter()
		}
	}

	return &RouterResult{App: app, Cleanup: cleanup}
}

// customErrorHandler handles Fiber framework errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	// Default to 500 server error
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Map common Fiber errors to domain errors
	switch code {
	case fiber.StatusRequestEntityTooLarge:
		return c.Status(413).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrTooLarge,
			Message: "Request payload too large",
		})
	case fiber.StatusBadRequest:
		return c.Status(400).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrInvalidInput,
			Message: message,
		})
	case fiber.StatusNotFound:
		return c.Status(404).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrNotFound,
			Message: message,
		})
	case fiber.StatusMethodNotAllowed:
		return c.Status(405).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrInvalidInput,
			Message: message,
		})
	default:
		return c.Status(code).JSON(ErrorResponse{
			Status:  "error",
			Code:    domain.ErrInternal,
			Message: message,
		})
	}
}

// generateUUID generates a UUID v4 for request tracking
func generateUUID() string {
	return uuid.New().String()
}

func requestIDFrom(c *fiber.Ctx) string {
	if rid, ok := c.Locals("requestid").(string); ok {
		return rid
	}
	return ""
}

func requestContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid := requestIDFrom(c); rid != "" {
			c.SetUserContext(domain.ContextWithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// structuredLoggingMiddleware creates structured JSON logging middleware with zerolog
func structuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		requestID := requestIDFrom(c)
		if requestID == "" {
			requestID = "unknown"
		}

		latency := time.Since(start)
		status := c.Response().StatusCode()

		logEvent := log.Info()
		switch {
		case status >= 500:
			logEvent = log.Error()
		case status >= 400:
			logEvent = log.Warn()
		}

		logEvent.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", latency).
			Str("ip", c.IP()).
			Str("user_agent", c.Get("User-Agent")).
			Int("body_size", len(c.Body())).
			Int("response_size", len(c.Response().Body())).
			Msg("HTTP request processed")

		return err
	}
}

// securityHeadersMiddleware adds security headers
// securityHeadersMiddleware sets HSTS only when the console is served over HTTPS
func securityHeadersMiddleware(enableHTTPS bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		if enableHTTPS {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		return c.Next()
	}
}
