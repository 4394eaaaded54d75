package generate

import (
	"context"
	"fmt"

	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/internal/generator/gemini"
	"github.com/memenem/memenem/internal/generator/mock"
	"github.com/memenem/memenem/internal/generator/openai"
)

// NewCaptionGenerator constructs the caption provider based on config.
// Called once at server startup.
func NewCaptionGenerator(ctx context.Context, cfg config.GeneratorConfig) (generator.CaptionGenerator, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "gemini":
		return gemini.NewProvider(ctx, cfg.Gemini)
	case "mock":
		return mock.NewGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown caption provider %q: must be one of openai, gemini, mock", cfg.Provider)
	}
}
