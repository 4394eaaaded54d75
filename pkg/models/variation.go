package models

import (
	"sort"
	"strings"
)

// VariationPayload is the generated text for one variation. Exactly one of
// Caption or Captions is set: single-panel templates carry one caption,
// multi-panel templates carry one caption per named panel.
type VariationPayload struct {
	Caption  string            `json:"caption,omitempty"`
	Captions map[string]string `json:"captions,omitempty"`
}

// Flatten joins all caption text into a single blob for scoring. The virality
// predictor contract expects one string regardless of template shape.
func (p VariationPayload) Flatten() string {
	if len(p.Captions) == 0 {
		return p.Caption
	}
	// Panel order is stable: panel names sort lexically (panel_1, panel_2, ...).
	names := make([]string, 0, len(p.Captions))
	for name := range p.Captions {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, p.Captions[name])
	}
	return strings.Join(parts, " / ")
}

// Variation is one generated output for a candidate, immutable once produced.
type Variation struct {
	VariationID   int               `json:"variation_id"`
	Caption       string            `json:"caption,omitempty"`
	Captions      map[string]string `json:"captions,omitempty"`
	ViralityScore float64           `json:"virality_score"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
}

// Payload reconstructs the variation's payload shape.
func (v Variation) Payload() VariationPayload {
	return VariationPayload{Caption: v.Caption, Captions: v.Captions}
}

// ResultGroup is the per-candidate output of a generation job: all variations
// produced for one template plus their average virality score.
type ResultGroup struct {
	TemplateID           string      `json:"template_id"`
	TemplateName         string      `json:"template_name"`
	ImageURL             string      `json:"image_url"`
	PanelCount           int         `json:"panel_count"`
	Characters           []string    `json:"characters,omitempty"`
	Variations           []Variation `json:"variations"`
	AverageViralityScore float64     `json:"average_virality_score"`
}
