// Package gemini implements caption generation against the Gemini API via
// google.golang.org/genai.
package gemini

import (
	"context"
	"fmt"

	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/pkg/models"
	"google.golang.org/genai"
)

// Provider implements generator.CaptionGenerator using Gemini.
type Provider struct {
	client *genai.Client
	model  string
}

// NewProvider creates a Gemini provider. The client is created once at
// startup and reused across jobs.
func NewProvider(ctx context.Context, cfg config.GeminiConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key cannot be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{client: client, model: cfg.Model}, nil
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Generate(ctx context.Context, candidate models.Candidate, topic, style string, count int) ([]models.VariationPayload, error) {
	prompt := generator.BuildCaptionPrompt(candidate, topic, style, count)

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", generator.ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", generator.ErrProviderUnavailable, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty response", generator.ErrInvalidResponse)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generator.ErrInvalidResponse)
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}

	return generator.ParseCaptionResponse(text, candidate.MultiPanel())
}

var _ generator.CaptionGenerator = (*Provider)(nil)
