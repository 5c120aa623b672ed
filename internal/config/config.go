package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the rule console backend
type Config struct {
	Server struct {
		Port         int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"35s"`
		BodyLimit    int           `env:"BODY_LIMIT" envDefault:"1048576" validate:"min=1"` // 1MB
		PublicHost   string        `env:"PUBLIC_HOST"`
	}

	// Backend is the Virtualpaper API the console talks to
	Backend BackendConfig

	Cache struct {
		MaxSize int           `env:"CACHE_MAX_SIZE" envDefault:"500" validate:"min=1"`
		TTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	}

	Sessions struct {
		IdleTimeout   time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"15m"`
		MaxSessions   int           `env:"SESSION_MAX" envDefault:"1000" validate:"min=1"`
		SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	}

	Security struct {
		CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," validate:"cors_origins"`
		EnableHTTPS bool     `env:"ENABLE_HTTPS" envDefault:"false"`
	}

	RateLimit struct {
		RPS   int `env:"RATE_LIMIT_RPS" envDefault:"20" validate:"min=1"`
		Burst int `env:"RATE_LIMIT_BURST" envDefault:"40" validate:"min=1"`
	}

	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
		Format string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	}
}

// BackendConfig holds connection settings for the Virtualpaper API
type BackendConfig struct {
	URL       string        `env:"BACKEND_URL" validate:"required,url"`
	Token     string        `env:"BACKEND_TOKEN"`
	TokenFile string        `env:"BACKEND_TOKEN_FILE"`
	Timeout   time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration using struct tags
func Validate(cfg *Config) error {
	validator := validator.New()

	if err := validator.RegisterValidation("cors_origins", validateCORSOrigins); err != nil {
		return fmt.Errorf("failed to register cors_origins validation: %w", err)
	}

	if err := validator.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCORSOrigins validates CORS origins format
func validateCORSOrigins(fl validator.FieldLevel) bool {
	origins := fl.Field().Interface().([]string)
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return false
		}
	}
	return true
}

// validateCustomRules performs additional validation beyond struct tags
func validateCustomRules(cfg *Config) error {
	if cfg.Server.ReadTimeout < time.Millisecond {
		return fmt.Errorf("read timeout must be at least 1ms")
	}
	if cfg.Server.WriteTimeout < time.Millisecond {
		return fmt.Errorf("write timeout must be at least 1ms")
	}
	if cfg.Cache.TTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}
	if cfg.Sessions.IdleTimeout < time.Second {
		return fmt.Errorf("session idle timeout must be at least 1 second")
	}
	if cfg.Sessions.SweepInterval < time.Second {
		return fmt.Errorf("session sweep interval must be at least 1 second")
	}

	return validateBackendConfig(&cfg.Backend)
}

// validateBackendConfig validates the backend connection settings
func validateBackendConfig(cfg *BackendConfig) error {
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("backend URL must be an http or https URL")
	}
	if cfg.Timeout < time.Second {
		return fmt.Errorf("backend timeout must be at least 1 second")
	}
	if cfg.Token != "" && cfg.TokenFile != "" {
		return fmt.Errorf("set either BACKEND_TOKEN or BACKEND_TOKEN_FILE, not both")
	}
	return nil
}

// ResolveToken returns the API token, reading the token file when one is configured
func (cfg *BackendConfig) ResolveToken() (string, error) {
	if cfg.TokenFile == "" {
		return cfg.Token, nil
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return "", fmt.Errorf("cannot read token file %s: %w", cfg.TokenFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// formatValidationError formats validation errors into readable messages
func formatValidationError(err error) error {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var messages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", e.Field()))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s", e.Field(), e.Param()))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s", e.Field(), e.Param()))
			case "oneof":
				messages = append(messages, fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param()))
			case "url":
				messages = append(messages, fmt.Sprintf("%s must be a valid URL", e.Field()))
			case "cors_origins":
				messages = append(messages, fmt.Sprintf("%s contains invalid origin format", e.Field()))
			default:
				messages = append(messages, fmt.Sprintf("%s failed validation: %s", e.Field(), e.Tag()))
			}
		}
		return fmt.Errorf("validation errors: %s", strings.Join(messages, "; "))
	}
	return err
}
