package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memenem/memenem/pkg/models"
)

var styleInstructions = map[string]string{
	"sarcastic":       "dry, biting sarcasm with deadpan delivery",
	"gen_z_slang":     "current gen-z slang, lowercase, chronically online tone",
	"wholesome":       "warm, uplifting humor with no edge",
	"dark_humor":      "dark but not offensive, gallows humor",
	"corporate_irony": "corporate buzzword irony, LinkedIn-core",
}

// BuildCaptionPrompt renders the instruction sent to a caption provider.
// Multi-panel templates request one caption per named panel so the response
// can be mapped back onto the image.
func BuildCaptionPrompt(candidate models.Candidate, topic, style string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d meme caption variation(s) for the %q template about: %s.\n", count, candidate.Name, topic)
	fmt.Fprintf(&b, "Humor style: %s.\n", styleInstructions[style])
	if len(candidate.Characters) > 0 {
		fmt.Fprintf(&b, "Template characters: %s.\n", strings.Join(candidate.Characters, ", "))
	}

	if candidate.MultiPanel() {
		panels := make([]string, candidate.PanelCount)
		for i := range panels {
			panels[i] = fmt.Sprintf("%q: \"...\"", panelName(i+1))
		}
		fmt.Fprintf(&b, "The template has %d panels. Respond with only a JSON array of %d objects, each {%s}.",
			candidate.PanelCount, count, strings.Join(panels, ", "))
	} else {
		fmt.Fprintf(&b, "Respond with only a JSON array of %d caption strings.", count)
	}
	return b.String()
}

func panelName(i int) string {
	return fmt.Sprintf("panel_%d", i)
}

// ParseCaptionResponse decodes a provider's JSON response into payloads.
// Single-panel templates expect an array of strings, multi-panel an array of
// panel-name to caption objects. Surrounding prose or code fences around the
// JSON are tolerated.
func ParseCaptionResponse(content string, multiPanel bool) ([]models.VariationPayload, error) {
	raw := extractJSONArray(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON array in response", ErrInvalidResponse)
	}

	if multiPanel {
		var parts []map[string]string
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		payloads := make([]models.VariationPayload, 0, len(parts))
		for _, p := range parts {
			if len(p) == 0 {
				continue
			}
			payloads = append(payloads, models.VariationPayload{Captions: p})
		}
		if len(payloads) == 0 {
			return nil, fmt.Errorf("%w: empty variation list", ErrInvalidResponse)
		}
		return payloads, nil
	}

	var captions []string
	if err := json.Unmarshal([]byte(raw), &captions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	payloads := make([]models.VariationPayload, 0, len(captions))
	for _, c := range captions {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		payloads = append(payloads, models.VariationPayload{Caption: c})
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("%w: empty caption list", ErrInvalidResponse)
	}
	return payloads, nil
}

func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return content[start : end+1]
}
