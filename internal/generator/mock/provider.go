// Package mock provides in-memory generator implementations for tests and
// local development without provider credentials.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/pkg/models"
)

// Generator is a configurable mock caption generator. The zero value returns
// deterministic canned captions; set GenerateFunc to override.
type Generator struct {
	GenerateFunc func(ctx context.Context, candidate models.Candidate, topic, style string, count int) ([]models.VariationPayload, error)

	mu    sync.Mutex
	calls int
}

func NewGenerator() *Generator { return &Generator{} }

func (g *Generator) Name() string { return "mock" }

func (g *Generator) Generate(ctx context.Context, candidate models.Candidate, topic, style string, count int) ([]models.VariationPayload, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()

	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, candidate, topic, style, count)
	}

	payloads := make([]models.VariationPayload, 0, count)
	for i := 0; i < count; i++ {
		if candidate.MultiPanel() {
			captions := make(map[string]string, candidate.PanelCount)
			for p := 1; p <= candidate.PanelCount; p++ {
				captions[fmt.Sprintf("panel_%d", p)] = fmt.Sprintf("%s caption %d panel %d (%s)", candidate.Name, i+1, p, style)
			}
			payloads = append(payloads, models.VariationPayload{Captions: captions})
		} else {
			payloads = append(payloads, models.VariationPayload{
				Caption: fmt.Sprintf("%s on %s, take %d (%s)", candidate.Name, topic, i+1, style),
			})
		}
	}
	return payloads, nil
}

// Calls reports how many times Generate has been invoked.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// Predictor is a configurable mock virality predictor.
type Predictor struct {
	ScoreFunc func(ctx context.Context, candidate models.Candidate, topic, style, text string) (float64, error)

	mu    sync.Mutex
	calls int
}

func NewPredictor() *Predictor { return &Predictor{} }

func (p *Predictor) Name() string { return "mock" }

func (p *Predictor) Score(ctx context.Context, candidate models.Candidate, topic, style, text string) (float64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	if p.ScoreFunc != nil {
		return p.ScoreFunc(ctx, candidate, topic, style, text)
	}
	return 60 + float64(len(text)%20), nil
}

// Calls reports how many times Score has been invoked.
func (p *Predictor) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var _ generator.CaptionGenerator = (*Generator)(nil)
var _ generator.ViralityPredictor = (*Predictor)(nil)
