package facts

import (
	"context"
	"fmt"
	"log/slog"
)

// Provider names accepted by NewGenerator.
const (
	ProviderOpenAI = "openai"
	ProviderGenAI  = "genai"
	ProviderNone   = "none"
)

// GeneratorConfig selects and configures a text service.
type GeneratorConfig struct {
	Provider    string
	OpenAI      OpenAIConfig
	GenAIAPIKey string
	GenAIModel  string
}

// NewGenerator builds the generator named by cfg.Provider. A provider
// without credentials degrades to Disabled so the slideshow still runs.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.OpenAI.APIKey == "" {
			slog.Warn("OPENAI_API_KEY not set; facts disabled", slog.String("component", "facts"))
			return Disabled{Reason: "OPENAI_API_KEY not set"}, nil
		}
		return NewOpenAIClient(cfg.OpenAI), nil
	case ProviderGenAI:
		if cfg.GenAIAPIKey == "" {
			slog.Warn("GENAI_API_KEY not set; facts disabled", slog.String("component", "facts"))
			return Disabled{Reason: "GENAI_API_KEY not set"}, nil
		}
		return NewGenAIClient(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
	case ProviderNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown fact provider %q", cfg.Provider)
	}
}
