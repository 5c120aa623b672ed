package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/virtualpaper/console/internal/api"
	"github.com/virtualpaper/console/internal/cache"
	"github.com/virtualpaper/console/internal/client"
	"github.com/virtualpaper/console/internal/config"
	"github.com/virtualpaper/console/internal/domain"
	"github.com/virtualpaper/console/internal/evaluator"
	"github.com/virtualpaper/console/internal/health"
	"github.com/virtualpaper/console/internal/tester"

	docs "github.com/virtualpaper/console/docs"
)

// @title Virtualpaper Rule Console API
// @version 1.0
// @description Backend for editing, validating and testing Virtualpaper processing rules

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http https

// @tag.name Rules
// @tag.description Processing rule management operations

// @tag.name Editor
// @tag.description Rule form operations and type tables

// @tag.name Testing
// @tag.description Server-side rule tests, test sessions and local preview

// @tag.name Bundles
// @tag.description Rule export and import

// @tag.name System
// @tag.description System health and metrics operations

// server bundles everything main starts and stops
type server struct {
	router   *api.RouterResult
	sessions *tester.Manager
	cfg      *config.Config
}

func main() {
	healthCheck := flag.Bool("health-check", false, "Perform health check and exit")
	flag.Parse()

	if *healthCheck {
		performHealthCheck()
		return
	}

	setupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	log.Info().Msg("Virtualpaper rule console starting...")

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logStartupConfig(cfg)

	srv, err := newServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.sessions.Run(ctx)
	go srv.shutdownOn(ctx)

	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().
		Int("port", cfg.Server.Port).
		Str("addr", serverAddr).
		Str("backend", cfg.Backend.URL).
		Msg("Starting HTTP server")

	if err := srv.router.App.Listen(serverAddr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}
}

// newServer wires the backend client, caches, test sessions and router
func newServer(cfg *config.Config) (*server, error) {
	token, err := cfg.Backend.ResolveToken()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backend token: %w", err)
	}
	if token == "" {
		log.Warn().Msg("No backend token configured, requests will be unauthenticated")
	}

	var tokens client.TokenSource
	if token != "" {
		tokens = client.StaticToken(token)
	}

	backend := client.New(client.Config{
		BaseURL: cfg.Backend.URL,
		Timeout: cfg.Backend.Timeout,
	}, tokens)

	documents := cache.NewLRUCache(cfg.Cache.MaxSize, cfg.Cache.TTL)

	sessions := tester.NewManager(backend, documents, tester.Config{
		IdleTimeout:   cfg.Sessions.IdleTimeout,
		MaxSessions:   cfg.Sessions.MaxSessions,
		SweepInterval: cfg.Sessions.SweepInterval,
	})

	healthChecker := health.NewSystemHealthChecker(backend, documents, sessions)

	router := api.SetupRouter(api.RouterDependencies{
		Backend:       backend,
		Cache:         documents,
		Validator:     domain.NewValidator(),
		HealthChecker: healthChecker,
		Sessions:      sessions,
		Evaluator:     evaluator.New(),
	}, api.RouterConfig{
		CORSOrigins:    cfg.Security.CORSOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		EnableHTTPS:    cfg.Security.EnableHTTPS,
	})

	docs.SwaggerInfo.Host = cfg.Server.PublicHost
	docs.SwaggerInfo.Schemes = []string{"http"}
	if cfg.Security.EnableHTTPS {
		docs.SwaggerInfo.Schemes = []string{"https"}
	}

	router.App.Server().ReadTimeout = cfg.Server.ReadTimeout
	router.App.Server().WriteTimeout = cfg.Server.WriteTimeout

	return &server{router: router, sessions: sessions, cfg: cfg}, nil
}

// shutdownOn stops the server once ctx is cancelled
func (s *server) shutdownOn(ctx context.Context) {
	<-ctx.Done()

	log.Info().Msg("Received shutdown signal, initiating graceful shutdown")
	if err := s.shutdown(30 * time.Second); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}

	log.Info().Msg("Graceful shutdown completed")
	os.Exit(0)
}

func (s *server) shutdown(timeout time.Duration) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info().Int("sessions", s.sessions.Count()).Msg("Closing test sessions...")
	s.sessions.CloseAll()

	log.Info().Msg("Stopping HTTP server...")
	err := s.router.App.ShutdownWithContext(shutdownCtx)
	s.router.Cleanup()
	return err
}

// loadConfig loads the configuration and reapplies its logging settings,
// which may come from a .env file the first setupLogger call could not see
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func logStartupConfig(cfg *config.Config) {
	log.Info().
		Int("server_port", cfg.Server.Port).
		Dur("server_read_timeout", cfg.Server.ReadTimeout).
		Dur("server_write_timeout", cfg.Server.WriteTimeout).
		Int("server_body_limit", cfg.Server.BodyLimit).
		Str("backend_url", cfg.Backend.URL).
		Dur("backend_timeout", cfg.Backend.Timeout).
		Bool("backend_token_file", cfg.Backend.TokenFile != "").
		Int("cache_max_size", cfg.Cache.MaxSize).
		Dur("cache_ttl", cfg.Cache.TTL).
		Dur("session_idle_timeout", cfg.Sessions.IdleTimeout).
		Int("session_max", cfg.Sessions.MaxSessions).
		Strs("security_cors_origins", cfg.Security.CORSOrigins).
		Bool("security_enable_https", cfg.Security.EnableHTTPS).
		Str("server_public_host", cfg.Server.PublicHost).
		Int("rate_limit_rps", cfg.RateLimit.RPS).
		Str("logging_level", cfg.Logging.Level).
		Str("logging_format", cfg.Logging.Format).
		Msg("Configuration loaded successfully")
}

func performHealthCheck() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{
		Timeout: 3 * time.Second,
	}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
