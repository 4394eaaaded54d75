// Package rank orders candidate templates by topic relevance.
package rank

import (
	"sort"
	"strings"

	"github.com/memenem/memenem/pkg/models"
)

const (
	nameMatchPoints = 3
	tagMatchPoints  = 2
	popularityCap   = 5
)

// Ranker deduplicates and orders candidates. Ranking is deterministic:
// the same input always produces the same order, which keeps cache keys and
// test fixtures stable.
type Ranker struct {
	// BonusWords is a policy knob: extra points per topic word present in the
	// map. Empty by default; callers that track trending terms can feed it.
	BonusWords map[string]float64
}

// New creates a Ranker with no bonus words.
func New() *Ranker {
	return &Ranker{}
}

// Rank removes duplicate candidates (by identity key, first occurrence wins)
// and sorts the remainder by descending topic relevance. Ties keep the
// caller-supplied order. Candidates are never dropped for scoring reasons.
func (r *Ranker) Rank(candidates []models.Candidate, topic string) []models.Candidate {
	unique := Deduplicate(candidates)

	type scored struct {
		candidate models.Candidate
		score     float64
	}

	topicWords := strings.Fields(strings.ToLower(topic))
	ranked := make([]scored, 0, len(unique))
	for _, c := range unique {
		ranked = append(ranked, scored{candidate: c, score: r.score(c, topicWords)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]models.Candidate, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.candidate)
	}
	return out
}

// Deduplicate removes candidates with a previously seen identity key,
// preserving the order of first occurrences.
func Deduplicate(candidates []models.Candidate) []models.Candidate {
	seen := make(map[string]bool, len(candidates))
	unique := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		unique = append(unique, c)
	}
	return unique
}

func (r *Ranker) score(c models.Candidate, topicWords []string) float64 {
	name := strings.ToLower(c.Name)
	tags := make([]string, len(c.Tags))
	for i, tag := range c.Tags {
		tags[i] = strings.ToLower(tag)
	}

	var score float64
	for _, word := range topicWords {
		matched := false
		if strings.Contains(name, word) {
			score += nameMatchPoints
			matched = true
		}
		for _, tag := range tags {
			if strings.Contains(tag, word) {
				score += tagMatchPoints
				matched = true
				break
			}
		}
		// Bonus only for candidates that carry the word.
		if matched {
			score += r.BonusWords[word]
		}
	}

	bonus := c.Popularity / 20
	if bonus > popularityCap {
		bonus = popularityCap
	}
	if bonus > 0 {
		score += bonus
	}
	return score
}
