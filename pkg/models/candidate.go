package models

// Candidate is a meme template competing to host generated captions.
// Candidates are immutable once ingested; ranking only reorders a snapshot.
type Candidate struct {
	ID         string   `json:"template_id"`
	Name       string   `json:"name"`
	ImageURL   string   `json:"url"`
	Tags       []string `json:"tags"`
	Popularity float64  `json:"popularity"`
	Source     string   `json:"source"`
	PanelCount int      `json:"panel_count"`
	Characters []string `json:"characters,omitempty"`
	BoxCount   int      `json:"box_count,omitempty"`
}

// MultiPanel reports whether the template needs one caption per panel.
func (c Candidate) MultiPanel() bool { return c.PanelCount > 1 }
