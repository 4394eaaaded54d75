package generator

import (
	"context"
	"strings"

	"github.com/memenem/memenem/pkg/models"
)

// NeutralScore is substituted whenever a predictor cannot produce a score.
const NeutralScore = 50.0

// styleWeights reflect observed engagement per humor style. Policy values,
// not a contract.
var styleWeights = map[string]float64{
	"sarcastic":       8,
	"gen_z_slang":     6,
	"wholesome":       5,
	"dark_humor":      4,
	"corporate_irony": 6,
}

// HeuristicPredictor is a deterministic feature-weighted virality model:
// template popularity, caption length, humor style, and tag overlap with the
// caption and topic. It never fails, which makes it the safe default and the
// fallback wrapped around flakier predictors.
type HeuristicPredictor struct{}

func NewHeuristicPredictor() *HeuristicPredictor { return &HeuristicPredictor{} }

func (p *HeuristicPredictor) Name() string { return "heuristic" }

func (p *HeuristicPredictor) Score(_ context.Context, candidate models.Candidate, topic, style, text string) (float64, error) {
	score := 30.0

	// Popular templates travel further.
	score += candidate.Popularity / 100 * 30

	// Captions between 15 and 35 characters read fastest.
	length := len(text)
	switch {
	case length >= 15 && length <= 35:
		score += 15
	case length > 50:
		score += 2
	default:
		score += 8
	}

	score += styleWeights[style]

	// Tag overlap with the caption or topic.
	lowerText := strings.ToLower(text)
	lowerTopic := strings.ToLower(topic)
	matches := 0
	for _, tag := range candidate.Tags {
		tag = strings.ToLower(tag)
		if tag != "" && (strings.Contains(lowerText, tag) || strings.Contains(lowerTopic, tag)) {
			matches++
		}
	}
	if len(candidate.Tags) > 0 {
		score += float64(matches) / float64(len(candidate.Tags)) * 15
	}

	return ClampScore(score), nil
}

// SafePredictor wraps a predictor so that errors and out-of-range scores
// never cross the core boundary: failures degrade to the neutral score.
type SafePredictor struct {
	Inner ViralityPredictor
}

func (p *SafePredictor) Name() string { return p.Inner.Name() }

func (p *SafePredictor) Score(ctx context.Context, candidate models.Candidate, topic, style, text string) (float64, error) {
	score, err := p.Inner.Score(ctx, candidate, topic, style, text)
	if err != nil {
		return NeutralScore, nil
	}
	return ClampScore(score), nil
}

var _ ViralityPredictor = (*HeuristicPredictor)(nil)
var _ ViralityPredictor = (*SafePredictor)(nil)
