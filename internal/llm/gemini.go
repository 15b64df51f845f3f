package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model name is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// models is the subset of *genai.Models the provider calls.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	CountTokens(ctx context.Context, model string, contents []*genai.Content, config *genai.CountTokensConfig) (*genai.CountTokensResponse, error)
}

// GeminiProvider generates answers with Google's Gemini API.
type GeminiProvider struct {
	models models
	model  string
}

// NewGeminiProvider creates a Gemini-backed provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGeminiProvider(client.Models, model), nil
}

func newGeminiProvider(m models, model string) *GeminiProvider {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiProvider{models: m, model: model}
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Generate sends prompt as a single user turn and returns the trimmed answer.
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (Generation, error) {
	resp, err := p.models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return Generation{}, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return Generation{}, errors.New("gemini generate: empty response")
	}

	gen := Generation{Text: strings.TrimSpace(resp.Text())}
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		gen.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
		gen.HasUsage = true
	}
	return gen, nil
}

// CountTokens returns the token count of text for the configured model.
func (p *GeminiProvider) CountTokens(ctx context.Context, text string) (int, error) {
	resp, err := p.models.CountTokens(ctx, p.model, genai.Text(text), nil)
	if err != nil {
		return 0, fmt.Errorf("gemini count tokens: %w", err)
	}
	return int(resp.TotalTokens), nil
}
