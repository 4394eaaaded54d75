package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// TerminalStatus reports whether a job status admits no further transitions.
func TerminalStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled
}

// Job tracks an async meme-generation request. The API returns a job_id on
// POST /api/v1/memes/generate; the client polls GET /api/v1/memes/jobs/{job_id}
// until status is completed, failed, or cancelled.
type Job struct {
	ID                 uuid.UUID     `db:"id"                  json:"id"`
	Status             string        `db:"status"              json:"status"`
	Progress           float64       `db:"progress"            json:"progress"`
	TotalTemplates     int           `db:"total_templates"     json:"total_templates"`
	CompletedTemplates int           `db:"completed_templates" json:"completed_templates"`
	ErrorMessage       *string       `db:"error_message"       json:"error_message,omitempty"`
	RequestParams      RequestParams `db:"request_params"      json:"request_params"`
	CompletedAt        *time.Time    `db:"completed_at"        json:"completed_at,omitempty"`
	CreatedAt          time.Time     `db:"created_at"          json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at"          json:"updated_at"`
}

// RequestParams is the immutable snapshot of the originating request,
// stored alongside the job record.
type RequestParams struct {
	Topic                 string `json:"topic"`
	Style                 string `json:"style"`
	MaxTemplates          int    `json:"max_templates"`
	VariationsPerTemplate int    `json:"variations_per_template"`
	TemplateID            string `json:"template_id,omitempty"`
}
