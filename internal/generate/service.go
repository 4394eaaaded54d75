// Package generate orchestrates asynchronous meme-generation jobs: candidate
// selection, batched caption generation, virality scoring, and result
// publication.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/memenem/memenem/internal/cache"
	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/generator"
	"github.com/memenem/memenem/internal/pacer"
	"github.com/memenem/memenem/internal/rank"
	"github.com/memenem/memenem/internal/sources"
	"github.com/memenem/memenem/internal/store"
	"github.com/memenem/memenem/pkg/models"
)

// statusTTL bounds how long the Redis status mirror outlives its last write.
const statusTTL = 30 * time.Minute

const (
	defaultMaxTemplates          = 5
	defaultVariationsPerTemplate = 3
	sourceFetchLimit             = 50
)

var (
	ErrInvalidRequest = errors.New("invalid generation request")
	ErrNoTemplates    = errors.New("no suitable meme templates found")
)

// Service owns the job lifecycle. Submit returns immediately; a background
// worker drives the job to a terminal state. The durable store is the source
// of truth for status, the Redis mirror only accelerates polling.
type Service struct {
	store     store.Store
	cache     *cache.Store
	status    cache.StatusCache
	generator generator.CaptionGenerator
	predictor generator.ViralityPredictor
	pacer     *pacer.Pacer
	ranker    *rank.Ranker
	sources   []sources.Source
	batch     config.BatchConfig
	timeout   time.Duration

	registry *jobRegistry

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewService creates a generation Service.
func NewService(
	st store.Store,
	ca *cache.Store,
	status cache.StatusCache,
	gen generator.CaptionGenerator,
	pred generator.ViralityPredictor,
	pc *pacer.Pacer,
	ranker *rank.Ranker,
	srcs []sources.Source,
	batch config.BatchConfig,
	timeout time.Duration,
) *Service {
	return &Service{
		store:     st,
		cache:     ca,
		status:    status,
		generator: gen,
		predictor: pred,
		pacer:     pc,
		ranker:    ranker,
		sources:   srcs,
		batch:     batch,
		timeout:   timeout,
		registry:  newJobRegistry(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// Submit validates the request, creates a queued job, and dispatches the
// worker goroutine. Returns the job immediately without waiting for any
// generation work.
func (s *Service) Submit(ctx context.Context, params models.RequestParams) (*models.Job, error) {
	if params.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	if !models.ValidHumorStyle(params.Style) {
		return nil, fmt.Errorf("%w: unknown humor style %q", ErrInvalidRequest, params.Style)
	}
	if params.MaxTemplates <= 0 {
		params.MaxTemplates = defaultMaxTemplates
	}
	if params.VariationsPerTemplate <= 0 {
		params.VariationsPerTemplate = defaultVariationsPerTemplate
	}

	now := s.now().UTC()
	job := &models.Job{
		ID:            uuid.New(),
		Status:        models.JobStatusQueued,
		RequestParams: params,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.mirrorStatus(ctx, job.ID, models.JobStatusQueued)
	done := s.registry.register(job.ID)

	go s.run(job.ID, params, done)

	return job, nil
}

// AwaitJob returns a channel that is closed once the job's worker finishes.
// Jobs without a live worker get an already-closed channel.
func (s *Service) AwaitJob(id uuid.UUID) <-chan struct{} {
	return s.registry.await(id)
}

// Cancel requests cooperative cancellation. Queued and processing jobs flip
// to cancelled; terminal jobs return store.ErrInvalidTransition. The worker
// notices the flip at its next batch boundary and stops without producing
// results.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.store.UpdateJob(ctx, id, store.WithStatus(models.JobStatusCancelled)); err != nil {
		return err
	}
	s.mirrorStatus(ctx, id, models.JobStatusCancelled)
	return nil
}

// EstimateCompletionTime predicts job duration in seconds: base catalog
// fetch, per-variation generation time, per-batch overhead, inter-batch
// delays, plus a 20% buffer.
func (s *Service) EstimateCompletionTime(maxTemplates, variationsPerTemplate int) int {
	if maxTemplates <= 0 {
		maxTemplates = defaultMaxTemplates
	}
	if variationsPerTemplate <= 0 {
		variationsPerTemplate = defaultVariationsPerTemplate
	}

	batchSize := s.batch.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	batches := (maxTemplates + batchSize - 1) / batchSize
	estimate := 5.0
	estimate += 3 * float64(maxTemplates*variationsPerTemplate)
	estimate += 2 * float64(batches)
	estimate += s.batch.InterBatchDelay.Seconds() * float64(batches-1)
	return int(math.Ceil(estimate * 1.2))
}

// run is the worker goroutine. It recovers from panics and always drives the
// job to a terminal state.
func (s *Service) run(jobID uuid.UUID, params models.RequestParams, done chan struct{}) {
	ctx := context.Background()
	defer close(done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in generation worker", "error", r, "job_id", jobID)
			s.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := s.store.UpdateJob(ctx, jobID, store.WithStatus(models.JobStatusProcessing)); err != nil {
		// A cancel that landed before the worker started is the common cause.
		slog.Info("job not started", "job_id", jobID, "error", err)
		return
	}
	s.mirrorStatus(ctx, jobID, models.JobStatusProcessing)

	candidates, err := s.selectCandidates(ctx, params)
	if err != nil {
		s.fail(ctx, jobID, err.Error())
		return
	}

	if err := s.store.UpdateJob(ctx, jobID, store.WithTotalTemplates(len(candidates))); err != nil {
		slog.Warn("total templates update failed", "job_id", jobID, "error", err)
	}

	groups, cancelled := s.processBatches(ctx, jobID, params, candidates)
	if cancelled {
		// Status already set by Cancel.
		return
	}
	if len(groups) == 0 {
		s.fail(ctx, jobID, "caption generation failed for all templates")
		return
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].AverageViralityScore > groups[j].AverageViralityScore
	})

	if err := s.cache.PutJobResults(ctx, jobID, groups); err != nil {
		s.fail(ctx, jobID, fmt.Sprintf("storing results: %v", err))
		return
	}

	if err := s.store.UpdateJob(ctx, jobID, store.WithStatus(models.JobStatusCompleted)); err != nil {
		slog.Warn("job completion update failed", "job_id", jobID, "error", err)
		return
	}
	s.mirrorStatus(ctx, jobID, models.JobStatusCompleted)
}

// selectCandidates resolves the templates a job will caption. A specific
// template_id bypasses ranking; otherwise candidates are deduplicated,
// ranked against the topic, and truncated to max_templates.
func (s *Service) selectCandidates(ctx context.Context, params models.RequestParams) ([]models.Candidate, error) {
	candidates, err := s.loadTemplates(ctx)
	if err != nil {
		return nil, err
	}

	if params.TemplateID != "" {
		for _, c := range candidates {
			if c.ID == params.TemplateID {
				return []models.Candidate{c}, nil
			}
		}
		return nil, fmt.Errorf("%w: template %q not found", ErrNoTemplates, params.TemplateID)
	}

	ranked := s.ranker.Rank(candidates, params.Topic)
	if len(ranked) == 0 {
		return nil, ErrNoTemplates
	}
	if len(ranked) > params.MaxTemplates {
		ranked = ranked[:params.MaxTemplates]
	}
	return ranked, nil
}

// loadTemplates serves candidates cache-first. On a cold cache every source
// is tried; per-source failures are logged and skipped, and whatever arrived
// is cached for the next job.
func (s *Service) loadTemplates(ctx context.Context) ([]models.Candidate, error) {
	cached, err := s.cache.GetTemplates(ctx, sourceFetchLimit)
	if err != nil {
		slog.Warn("template cache read failed", "error", err)
	}
	if len(cached) > 0 {
		return cached, nil
	}

	var fetched []models.Candidate
	for _, src := range s.sources {
		candidates, err := src.Fetch(ctx, sourceFetchLimit)
		if err != nil {
			slog.Warn("template source failed", "source", src.Name(), "error", err)
			continue
		}
		fetched = append(fetched, candidates...)
	}
	if len(fetched) == 0 {
		return nil, ErrNoTemplates
	}

	fetched = rank.Deduplicate(fetched)
	if err := s.cache.PutTemplates(ctx, fetched); err != nil {
		slog.Warn("template cache write failed", "error", err)
	}
	return fetched, nil
}

// processBatches runs candidates through the generator in fixed-size batches,
// persisting progress after each batch. The cancelled flag distinguishes a
// cancelled job from one where every candidate failed; the accumulated groups
// may legitimately be empty in the latter case.
func (s *Service) processBatches(ctx context.Context, jobID uuid.UUID, params models.RequestParams, candidates []models.Candidate) (result []models.ResultGroup, cancelled bool) {
	total := len(candidates)
	batchSize := s.batch.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	var groups []models.ResultGroup
	processed := 0

	for start := 0; start < total; start += batchSize {
		if s.cancelled(ctx, jobID) {
			slog.Info("job cancelled, stopping worker", "job_id", jobID)
			return nil, true
		}

		end := start + batchSize
		if end > total {
			end = total
		}

		for _, candidate := range candidates[start:end] {
			group, err := s.processCandidate(ctx, candidate, params)
			processed++
			if err != nil {
				slog.Warn("candidate failed, skipping",
					"job_id", jobID, "template_id", candidate.ID, "error", err)
				continue
			}
			groups = append(groups, group)
		}

		progress := float64(processed) / float64(total) * 100
		if err := s.store.UpdateJob(ctx, jobID,
			store.WithProgress(progress),
			store.WithCompletedTemplates(len(groups))); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				// Terminal flip raced the progress write: treat as cancellation.
				return nil, true
			}
			slog.Warn("progress update failed", "job_id", jobID, "error", err)
		}

		if end < total && s.batch.InterBatchDelay > 0 {
			if err := s.sleep(ctx, s.batch.InterBatchDelay); err != nil {
				return nil, true
			}
		}
	}

	return groups, false
}

// processCandidate produces the result group for one template: cached
// variations when the same request shape was generated before, otherwise a
// paced provider call followed by scoring and cache write-back.
func (s *Service) processCandidate(ctx context.Context, candidate models.Candidate, params models.RequestParams) (models.ResultGroup, error) {
	count := params.VariationsPerTemplate

	variations, hit, err := s.cache.GetCaptions(ctx, params.Topic, params.Style, candidate.ID, count)
	if err != nil {
		slog.Warn("caption cache read failed", "template_id", candidate.ID, "error", err)
		hit = false
	}

	if !hit {
		if err := s.pacer.Wait(ctx, s.generator.Name()); err != nil {
			return models.ResultGroup{}, fmt.Errorf("pacing provider call: %w", err)
		}

		genCtx, cancel := context.WithTimeout(ctx, s.timeout)
		payloads, err := s.generator.Generate(genCtx, candidate, params.Topic, params.Style, count)
		cancel()
		if err != nil {
			return models.ResultGroup{}, err
		}

		variations = make([]models.Variation, 0, len(payloads))
		for i, payload := range payloads {
			score, err := s.predictor.Score(ctx, candidate, params.Topic, params.Style, payload.Flatten())
			if err != nil {
				score = generator.NeutralScore
			}
			variations = append(variations, models.Variation{
				VariationID:   i + 1,
				Caption:       payload.Caption,
				Captions:      payload.Captions,
				ViralityScore: generator.ClampScore(score),
			})
		}

		if err := s.cache.PutCaptions(ctx, params.Topic, params.Style, candidate.ID, count, variations); err != nil {
			slog.Warn("caption cache write failed", "template_id", candidate.ID, "error", err)
		}
	}

	if len(variations) == 0 {
		return models.ResultGroup{}, fmt.Errorf("no variations produced for template %s", candidate.ID)
	}

	var sum float64
	for _, v := range variations {
		sum += v.ViralityScore
	}

	return models.ResultGroup{
		TemplateID:           candidate.ID,
		TemplateName:         candidate.Name,
		ImageURL:             candidate.ImageURL,
		PanelCount:           candidate.PanelCount,
		Characters:           candidate.Characters,
		Variations:           variations,
		AverageViralityScore: sum / float64(len(variations)),
	}, nil
}

// cancelled reports whether the job has been flipped to cancelled. Read
// failures err on the side of continuing; the next boundary re-checks.
func (s *Service) cancelled(ctx context.Context, jobID uuid.UUID) bool {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		slog.Warn("cancellation check failed", "job_id", jobID, "error", err)
		return false
	}
	return job.Status == models.JobStatusCancelled
}

func (s *Service) fail(ctx context.Context, jobID uuid.UUID, msg string) {
	if err := s.store.UpdateJob(ctx, jobID,
		store.WithStatus(models.JobStatusFailed),
		store.WithErrorMessage(msg)); err != nil {
		slog.Warn("job failure update failed", "job_id", jobID, "error", err)
		return
	}
	s.mirrorStatus(ctx, jobID, models.JobStatusFailed)
}

func (s *Service) mirrorStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if err := s.status.SetJobStatus(ctx, jobID, status, statusTTL); err != nil {
		slog.Warn("status mirror write failed", "job_id", jobID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
