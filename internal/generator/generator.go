// Package generator defines the external collaborator contracts for caption
// generation and virality prediction. Callers depend on these interfaces,
// never on a concrete provider.
package generator

import (
	"context"
	"errors"

	"github.com/memenem/memenem/pkg/models"
)

var (
	ErrProviderUnavailable = errors.New("caption provider unavailable")
	ErrGenerationTimeout   = errors.New("caption generation timeout")
	ErrInvalidResponse     = errors.New("caption provider returned invalid response")
)

// CaptionGenerator produces caption payloads for a candidate template.
// Multi-panel candidates get one caption per named panel. A failed call
// drops the candidate from its batch; the scheduler does not retry here.
type CaptionGenerator interface {
	Generate(ctx context.Context, candidate models.Candidate, topic, style string, count int) ([]models.VariationPayload, error)
	Name() string
}

// ViralityPredictor scores a flattened caption blob in [0,100]. Callers must
// treat an error as a neutral score, never as a candidate failure.
type ViralityPredictor interface {
	Score(ctx context.Context, candidate models.Candidate, topic, style, text string) (float64, error)
	Name() string
}

// ClampScore bounds a predictor score to [0,100].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
