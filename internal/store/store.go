package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/memenem/memenem/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid job status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error
	ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error)
	DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	UpsertCacheEntry(ctx context.Context, entry *models.CacheEntry) error
	GetCacheEntry(ctx context.Context, namespace, key string) (*models.CacheEntry, error)
	ListCacheEntries(ctx context.Context, namespace string, limit int) ([]*models.CacheEntry, error)
	IncrementCacheHit(ctx context.Context, namespace, key string) error
	DeleteExpiredCacheEntries(ctx context.Context, namespace string, cutoff time.Time, weightFloor float64, protectedCutoff time.Time) (int64, error)
	CountCacheEntries(ctx context.Context) (map[string]int64, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// JobUpdate collects the fields a partial job update touches. Options fill
// it in; nil fields are left untouched by the write.
type JobUpdate struct {
	Status             *string
	Progress           *float64
	TotalTemplates     *int
	CompletedTemplates *int
	ErrorMessage       *string
}

// JobUpdateOption selects which job fields a partial update touches.
// updated_at is always bumped regardless of options.
type JobUpdateOption func(*JobUpdate)

func WithStatus(status string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Status = &status
	}
}

// WithProgress sets the advisory progress percentage. Stored progress never
// decreases; lower values are silently ignored by the update.
func WithProgress(progress float64) JobUpdateOption {
	return func(p *JobUpdate) {
		p.Progress = &progress
	}
}

func WithTotalTemplates(n int) JobUpdateOption {
	return func(p *JobUpdate) {
		p.TotalTemplates = &n
	}
}

func WithCompletedTemplates(n int) JobUpdateOption {
	return func(p *JobUpdate) {
		p.CompletedTemplates = &n
	}
}

func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *JobUpdate) {
		p.ErrorMessage = &msg
	}
}
