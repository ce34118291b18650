package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGenAIModel is the Gemini model used when none is configured.
const DefaultGenAIModel = "gemini-2.0-flash"

// contentGenerator is the part of *genai.Models the client calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIClient implements Generator using Google's Gemini API.
type GenAIClient struct {
	models contentGenerator
	model  string
}

// NewGenAIClient creates a Gemini-backed generator.
func NewGenAIClient(ctx context.Context, apiKey, model string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = DefaultGenAIModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIClient{models: client.Models, model: model}, nil
}

// Generate implements Generator.
func (c *GenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(req.MaxTokens), //nolint:gosec // small configured value
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", &ServiceError{Class: ClassifyServiceError(err), Err: fmt.Errorf("generate content: %w", err)}
	}
	if resp == nil {
		return "", fatal(0, errors.New("empty completion"))
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fatal(0, errors.New("empty completion"))
	}
	return text, nil
}
