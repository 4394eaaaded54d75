// Package openai implements caption generation against the OpenAI chat
// completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/pkg/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	requestTimeout = 60 * time.Second
)

// Provider implements generator.CaptionGenerator using OpenAI.
type Provider struct {
	cfg     config.OpenAIConfig
	baseURL string
	client  *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (p *Provider) Name() string { return "openai" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (p *Provider) Generate(ctx context.Context, candidate models.Candidate, topic, style string, count int) ([]models.VariationPayload, error) {
	prompt := generator.BuildCaptionPrompt(candidate, topic, style, count)

	body, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a meme caption writer. Respond with JSON only."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.9,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", generator.ErrInvalidResponse, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", generator.ErrProviderUnavailable, msg)
		}
		return nil, fmt.Errorf("%w: %s", generator.ErrInvalidResponse, msg)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", generator.ErrInvalidResponse)
	}

	return generator.ParseCaptionResponse(parsed.Choices[0].Message.Content, candidate.MultiPanel())
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", generator.ErrGenerationTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generator.ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %v", generator.ErrProviderUnavailable, err)
}

var _ generator.CaptionGenerator = (*Provider)(nil)
