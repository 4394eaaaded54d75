package sources

import (
	"sort"
	"strings"
)

// templateTraits carries curated panel and character metadata for well-known
// templates. Catalog APIs only report text-box counts, which overcount
// panels, so known templates override the derived value.
type templateTraits struct {
	PanelCount int
	Characters []string
}

var knownTraits = map[string]templateTraits{
	"drake hotline bling":    {PanelCount: 2, Characters: []string{"Drake"}},
	"distracted boyfriend":   {PanelCount: 1, Characters: []string{"boyfriend", "girlfriend", "other woman"}},
	"two buttons":            {PanelCount: 2, Characters: []string{"sweating guy"}},
	"expanding brain":        {PanelCount: 4, Characters: []string{"brain"}},
	"woman yelling at a cat": {PanelCount: 2, Characters: []string{"woman", "cat"}},
	"change my mind":         {PanelCount: 1, Characters: []string{"Steven Crowder"}},
	"this is fine":           {PanelCount: 2, Characters: []string{"dog"}},
	"surprised pikachu":      {PanelCount: 1, Characters: []string{"Pikachu"}},
	"disaster girl":          {PanelCount: 1, Characters: []string{"girl"}},
	"left exit 12 off ramp":  {PanelCount: 1, Characters: []string{"car"}},
}

// tagPatterns maps name substrings to descriptive tags.
var tagPatterns = map[string][]string{
	"drake":      {"reaction", "choice", "preference"},
	"distracted": {"distraction", "choice", "temptation"},
	"success":    {"success", "celebration"},
	"disaster":   {"disaster", "chaos", "failure"},
	"guy":        {"person", "reaction"},
	"woman":      {"person", "reaction"},
	"cat":        {"animal", "pet"},
	"dog":        {"animal", "pet"},
	"crying":     {"sad", "emotion"},
	"laughing":   {"happy", "joy"},
	"angry":      {"mad", "emotion"},
	"surprised":  {"shock", "reaction"},
	"thinking":   {"contemplation", "decision"},
	"pointing":   {"accusation", "blame"},
	"change":     {"mind", "opinion"},
	"office":     {"work", "corporate"},
	"student":    {"school", "education"},
	"first":      {"first time", "new"},
	"ancient":    {"old", "historical"},
	"modern":     {"contemporary", "current"},
}

// deriveTags builds a tag list from a template name plus source markers.
// Output is sorted and deduplicated so candidates hash identically run to run.
func deriveTags(name string, base ...string) []string {
	seen := map[string]bool{"meme": true}
	for _, b := range base {
		seen[strings.ToLower(b)] = true
	}

	nameLower := strings.ToLower(name)
	for pattern, patternTags := range tagPatterns {
		if strings.Contains(nameLower, pattern) {
			for _, t := range patternTags {
				seen[t] = true
			}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// applyTraits fills in panel and character metadata for known templates.
// Unknown templates keep a single panel regardless of text-box count.
func applyTraits(name string) templateTraits {
	if traits, ok := knownTraits[strings.ToLower(name)]; ok {
		return traits
	}
	return templateTraits{PanelCount: 1}
}
