package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp      *genai.GenerateContentResponse
	genErr    error
	tokens    int32
	countErr  error
	lastModel string
	lastText  string
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = model
	f.lastText = contents[0].Parts[0].Text
	return f.resp, f.genErr
}

func (f *fakeModels) CountTokens(_ context.Context, model string, contents []*genai.Content, _ *genai.CountTokensConfig) (*genai.CountTokensResponse, error) {
	f.lastModel = model
	f.lastText = contents[0].Parts[0].Text
	if f.countErr != nil {
		return nil, f.countErr
	}
	return &genai.CountTokensResponse{TotalTokens: f.tokens}, nil
}

func textResponse(text string, total int32) *genai.GenerateContentResponse {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
	if total > 0 {
		resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: total}
	}
	return resp
}

func TestGeminiGenerateUsesReportedUsage(t *testing.T) {
	fm := &fakeModels{resp: textResponse("  Merhaba!  \n", 42)}
	p := newGeminiProvider(fm, "")

	gen, err := p.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Merhaba!", gen.Text)
	assert.True(t, gen.HasUsage)
	assert.Equal(t, 42, gen.TotalTokens)
	assert.Equal(t, DefaultGeminiModel, fm.lastModel)
	assert.Equal(t, "prompt", fm.lastText)
}

func TestGeminiGenerateWithoutUsage(t *testing.T) {
	p := newGeminiProvider(&fakeModels{resp: textResponse("cevap", 0)}, "gemini-custom")

	gen, err := p.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.False(t, gen.HasUsage)
	assert.Equal(t, "gemini-custom", p.Model())
}

func TestGeminiGenerateError(t *testing.T) {
	p := newGeminiProvider(&fakeModels{genErr: errors.New("quota exceeded")}, "")

	_, err := p.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiCountTokens(t *testing.T) {
	fm := &fakeModels{tokens: 7}
	p := newGeminiProvider(fm, "")

	n, err := p.CountTokens(context.Background(), "merhaba dünya")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "merhaba dünya", fm.lastText)

	fm.countErr = errors.New("boom")
	_, err = p.CountTokens(context.Background(), "x")
	require.Error(t, err)
}

func TestNewGeminiProviderRequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUnavailableAlwaysFails(t *testing.T) {
	var p Provider = Unavailable{}
	_, err := p.Generate(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = p.CountTokens(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
