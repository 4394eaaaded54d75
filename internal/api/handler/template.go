package handler

import (
	"context"
	"net/http"

	"github.com/memenem/memenem/internal/api/response"
	"github.com/memenem/memenem/pkg/models"
)

// TemplateReader lists cached candidate templates.
type TemplateReader interface {
	GetTemplates(ctx context.Context, limit int) ([]models.Candidate, error)
}

// NewListTemplatesHandler returns the handler for GET /api/v1/templates.
// Serves only what the cache holds; an empty list means no job has warmed
// the template cache yet.
func NewListTemplatesHandler(templates TemplateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 50)

		candidates, err := templates.GetTemplates(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list templates", nil)
			return
		}
		if candidates == nil {
			candidates = []models.Candidate{}
		}
		response.JSON(w, candidates)
	}
}
