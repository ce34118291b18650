// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup: with no text
// service credentials the slideshow still runs and every slide shows the placeholder fact.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full service configuration.
type Config struct {
	// HTTP
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Boundaries
	GeometryMode    string `env:"GEOMETRY_MODE" envDefault:"combined"`
	CombinedPath    string `env:"GEOMETRY_COMBINED_PATH" envDefault:"./unioned_districts.shp"`
	DistrictPattern string `env:"GEOMETRY_DISTRICT_PATTERN" envDefault:"districts/district_{id}.shp"`
	IDField         string `env:"GEOMETRY_ID_FIELD" envDefault:"district_n"`

	// Text service
	FactProvider    string        `env:"FACT_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel     string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	GenAIAPIKey     string        `env:"GENAI_API_KEY"`
	GenAIModel      string        `env:"GENAI_MODEL" envDefault:"gemini-2.0-flash"`
	FactTimeout     time.Duration `env:"FACT_TIMEOUT" envDefault:"30s"`
	FactMaxAttempts int           `env:"FACT_MAX_ATTEMPTS" envDefault:"1"`
	FactBackoffBase time.Duration `env:"FACT_BACKOFF_BASE" envDefault:"2s"`
	FactTemperature float64       `env:"FACT_TEMPERATURE" envDefault:"0.7"`
	FactMaxTokens   int           `env:"FACT_MAX_TOKENS" envDefault:"75"`

	// Slideshow
	SlideIntervalSeconds int  `env:"SLIDE_INTERVAL_SECONDS" envDefault:"1"`
	SlideSize            int  `env:"SLIDE_SIZE" envDefault:"800"`
	AutoStart            bool `env:"AUTO_START" envDefault:"true"`

	// Control endpoint protection
	ControlToken    string `env:"CONTROL_TOKEN"`
	ControlUsername string `env:"CONTROL_USERNAME"`
	ControlPassword string `env:"CONTROL_PASSWORD"`

	RateLimitEnabled       bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequestsPerIP int  `env:"RATE_LIMIT_REQUESTS_PER_IP" envDefault:"30"`
	RateLimitWindowSeconds int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	// CORS
	Env                string   `env:"ENV"`
	CORSPermissive     *bool    `env:"CORS_PERMISSIVE"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads environment variables and applies defaults. It does not fail when
// text service credentials are missing; the fact provider then degrades to the
// placeholder.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.GeometryMode = strings.ToLower(strings.TrimSpace(cfg.GeometryMode))
	cfg.FactProvider = strings.ToLower(strings.TrimSpace(cfg.FactProvider))
	return cfg, nil
}

// Validate checks modes and bounds.
func (c *Config) Validate() error {
	switch c.GeometryMode {
	case "combined":
		if c.CombinedPath == "" {
			return fmt.Errorf("GEOMETRY_COMBINED_PATH is required in combined mode")
		}
	case "per-district":
		if !strings.Contains(c.DistrictPattern, "{id}") {
			return fmt.Errorf("GEOMETRY_DISTRICT_PATTERN %q must contain {id}", c.DistrictPattern)
		}
	default:
		return fmt.Errorf("invalid GEOMETRY_MODE %q: want combined or per-district", c.GeometryMode)
	}
	switch c.FactProvider {
	case "openai", "genai", "none":
	default:
		return fmt.Errorf("invalid FACT_PROVIDER %q: want openai, genai or none", c.FactProvider)
	}
	if c.SlideIntervalSeconds < 1 || c.SlideIntervalSeconds > 10 {
		return fmt.Errorf("SLIDE_INTERVAL_SECONDS must be between 1 and 10, got %d", c.SlideIntervalSeconds)
	}
	if c.SlideSize < 200 || c.SlideSize > 4096 {
		return fmt.Errorf("SLIDE_SIZE must be between 200 and 4096, got %d", c.SlideSize)
	}
	if c.FactMaxAttempts < 1 {
		return fmt.Errorf("FACT_MAX_ATTEMPTS must be at least 1, got %d", c.FactMaxAttempts)
	}
	if c.FactMaxTokens < 1 {
		return fmt.Errorf("FACT_MAX_TOKENS must be positive, got %d", c.FactMaxTokens)
	}
	if c.FactTemperature < 0 || c.FactTemperature > 2 {
		return fmt.Errorf("FACT_TEMPERATURE must be between 0 and 2, got %v", c.FactTemperature)
	}
	return nil
}

// SlideInterval returns the configured wait between slides.
func (c *Config) SlideInterval() time.Duration {
	return time.Duration(c.SlideIntervalSeconds) * time.Second
}

// ControlAuthEnabled reports whether control endpoints require credentials.
func (c *Config) ControlAuthEnabled() bool {
	return c.ControlToken != "" || (c.ControlUsername != "" && c.ControlPassword != "")
}

// PermissiveCORS defaults to permissive in dev, restricted otherwise;
// CORS_PERMISSIVE overrides.
func (c *Config) PermissiveCORS() bool {
	if c.CORSPermissive != nil {
		return *c.CORSPermissive
	}
	mode := strings.ToLower(c.Env)
	return mode == "" || mode == "dev" || mode == "development"
}
