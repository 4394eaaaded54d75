// Package handler contains HTTP handlers for the MemeNem API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/memenem/memenem/internal/api/response"
	"github.com/memenem/memenem/internal/generate"
	"github.com/memenem/memenem/internal/store"
	"github.com/memenem/memenem/pkg/models"
)

var validate = validator.New()

// GenerationService is the scheduler surface the meme handlers depend on.
type GenerationService interface {
	Submit(ctx context.Context, params models.RequestParams) (*models.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	EstimateCompletionTime(maxTemplates, variationsPerTemplate int) int
}

// JobReader reads job records for polling endpoints.
type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error)
}

// ResultReader fetches cached result groups for completed jobs.
type ResultReader interface {
	GetJobResults(ctx context.Context, jobID uuid.UUID) ([]models.ResultGroup, bool, error)
}

type generateRequest struct {
	Topic                 string `json:"topic" validate:"required,min=1,max=200"`
	Style                 string `json:"style" validate:"required,oneof=sarcastic gen_z_slang wholesome dark_humor corporate_irony"`
	MaxTemplates          int    `json:"max_templates" validate:"omitempty,min=1,max=10"`
	VariationsPerTemplate int    `json:"variations_per_template" validate:"omitempty,min=1,max=5"`
	TemplateID            string `json:"template_id" validate:"omitempty,max=100"`
}

type generateResponse struct {
	JobID                string `json:"job_id"`
	Status               string `json:"status"`
	EstimatedTimeSeconds int    `json:"estimated_time_seconds"`
}

// NewGenerateHandler returns the handler for POST /api/v1/memes/generate.
func NewGenerateHandler(svc GenerationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if err := validate.Struct(req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"Request validation failed", validationDetails(err))
			return
		}

		job, err := svc.Submit(r.Context(), models.RequestParams{
			Topic:                 req.Topic,
			Style:                 req.Style,
			MaxTemplates:          req.MaxTemplates,
			VariationsPerTemplate: req.VariationsPerTemplate,
			TemplateID:            req.TemplateID,
		})
		if err != nil {
			if errors.Is(err, generate.ErrInvalidRequest) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create generation job", nil)
			return
		}

		response.Accepted(w, generateResponse{
			JobID:  job.ID.String(),
			Status: job.Status,
			EstimatedTimeSeconds: svc.EstimateCompletionTime(
				job.RequestParams.MaxTemplates, job.RequestParams.VariationsPerTemplate),
		})
	}
}

type jobResponse struct {
	*models.Job
	Results []models.ResultGroup `json:"results,omitempty"`
}

// NewPollJobHandler returns the handler for GET /api/v1/memes/jobs/{jobID}.
// Completed jobs carry their result groups; a completed job whose cached
// results have expired is reported as failed so clients resubmit instead of
// polling forever.
func NewPollJobHandler(jobs JobReader, results ResultReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseJobID(w, r)
		if !ok {
			return
		}

		job, err := jobs.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		resp := jobResponse{Job: job}
		if job.Status == models.JobStatusCompleted {
			groups, hit, err := results.GetJobResults(r.Context(), jobID)
			switch {
			case err != nil:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to load job results", nil)
				return
			case hit:
				resp.Results = groups
			default:
				expired := *job
				expired.Status = models.JobStatusFailed
				msg := "results expired, please submit a new generation request"
				expired.ErrorMessage = &msg
				resp.Job = &expired
			}
		}

		response.JSON(w, resp)
	}
}

// NewListJobsHandler returns the handler for GET /api/v1/memes/jobs.
func NewListJobsHandler(jobs JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 10)

		recent, err := jobs.ListRecentJobs(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}
		if recent == nil {
			recent = []*models.Job{}
		}
		response.JSON(w, recent)
	}
}

// NewCancelJobHandler returns the handler for DELETE /api/v1/memes/jobs/{jobID}.
func NewCancelJobHandler(svc GenerationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := parseJobID(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), jobID); err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
			case errors.Is(err, store.ErrInvalidTransition):
				response.Error(w, http.StatusConflict, "JOB_ALREADY_FINISHED",
					"Job has already reached a terminal state", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to cancel job", nil)
			}
			return
		}

		response.JSON(w, map[string]string{
			"job_id": jobID.String(),
			"status": models.JobStatusCancelled,
		})
	}
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "jobID")
	jobID, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"jobID must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return jobID, true
}

func queryInt(r *http.Request, name string, defaultVal int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// validationDetails flattens validator errors into field -> constraint pairs.
func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return details
}
