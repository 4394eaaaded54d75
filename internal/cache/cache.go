package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/memenem/memenem/internal/config"
	"github.com/memenem/memenem/internal/store"
	"github.com/memenem/memenem/pkg/models"
)

// templateRetentionFactor stretches the sweep window for popular templates
// so hot entries do not churn on every sweep.
const templateRetentionFactor = 24

// Store caches templates, caption variations, and job results in the durable
// store with per-namespace TTLs. Freshness is always computed from the
// entry's own created_at, so reads behave the same on any storage engine.
// Safe for concurrent use: every mutation is scoped to one (namespace, key).
type Store struct {
	db              store.Store
	ttls            map[string]time.Duration
	popularityFloor float64
	now             func() time.Time
}

// NewStore creates a cache Store over the given durable store.
func NewStore(db store.Store, cfg config.CacheConfig) *Store {
	return &Store{
		db: db,
		ttls: map[string]time.Duration{
			models.CacheNamespaceTemplates:  cfg.TemplatesTTL,
			models.CacheNamespaceCaptions:   cfg.CaptionsTTL,
			models.CacheNamespaceJobResults: cfg.JobResultsTTL,
		},
		popularityFloor: cfg.PopularityFloor,
		now:             time.Now,
	}
}

// Get returns the cached value for (namespace, key), or a miss if the entry
// is absent or older than the namespace TTL. Expired entries are never
// returned; they are left for the sweep to collect.
func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	entry, err := s.db.GetCacheEntry(ctx, namespace, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if s.expired(entry, s.now().UTC()) {
		return nil, false, nil
	}

	if err := s.db.IncrementCacheHit(ctx, namespace, key); err != nil {
		slog.Warn("cache hit count update failed", "namespace", namespace, "error", err)
	}
	return entry.Value, true, nil
}

// Put upserts a value under (namespace, key), resetting its age. Concurrent
// writers race last-write-wins; values are derived deterministically from the
// same inputs, so either winner is equivalent.
func (s *Store) Put(ctx context.Context, namespace, key string, value []byte, weight float64) error {
	return s.db.UpsertCacheEntry(ctx, &models.CacheEntry{
		Namespace: namespace,
		Key:       key,
		Value:     value,
		Weight:    weight,
		CreatedAt: s.now().UTC(),
	})
}

// Sweep deletes expired entries in every namespace and returns per-namespace
// deletion counts. Template entries with weight at or above the popularity
// floor get a longer retention window. Idempotent and safe to run
// concurrently with reads and writes.
func (s *Store) Sweep(ctx context.Context) (map[string]int64, error) {
	now := s.now().UTC()
	counts := make(map[string]int64, len(s.ttls))

	for ns, ttl := range s.ttls {
		cutoff := now.Add(-ttl)
		floor := math.MaxFloat64
		protectedCutoff := cutoff
		if ns == models.CacheNamespaceTemplates {
			floor = s.popularityFloor
			protectedCutoff = now.Add(-ttl * templateRetentionFactor)
		}

		n, err := s.db.DeleteExpiredCacheEntries(ctx, ns, cutoff, floor, protectedCutoff)
		if err != nil {
			return counts, fmt.Errorf("sweep %s: %w", ns, err)
		}
		counts[ns] = n
	}
	return counts, nil
}

// Stats returns per-namespace entry counts.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	return s.db.CountCacheEntries(ctx)
}

func (s *Store) expired(entry *models.CacheEntry, now time.Time) bool {
	ttl, ok := s.ttls[entry.Namespace]
	if !ok {
		return true
	}
	return now.After(entry.CreatedAt.Add(ttl))
}

// --- Typed helpers ---

// GetTemplates returns fresh cached candidate templates ordered by
// popularity. Stale entries are filtered out, not returned.
func (s *Store) GetTemplates(ctx context.Context, limit int) ([]models.Candidate, error) {
	entries, err := s.db.ListCacheEntries(ctx, models.CacheNamespaceTemplates, limit)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var candidates []models.Candidate
	for _, entry := range entries {
		if s.expired(entry, now) {
			continue
		}
		var c models.Candidate
		if err := json.Unmarshal(entry.Value, &c); err != nil {
			slog.Warn("corrupt cached template dropped", "key", entry.Key, "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// PutTemplates caches each candidate under its own key, weighted by
// popularity so the sweep can protect popular templates.
func (s *Store) PutTemplates(ctx context.Context, candidates []models.Candidate) error {
	for _, c := range candidates {
		value, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal template %s: %w", c.ID, err)
		}
		if err := s.Put(ctx, models.CacheNamespaceTemplates, TemplateKey(c.ID), value, c.Popularity); err != nil {
			return err
		}
	}
	return nil
}

// GetCaptions returns cached caption variations for the exact request shape,
// or a miss.
func (s *Store) GetCaptions(ctx context.Context, topic, style, templateID string, count int) ([]models.Variation, bool, error) {
	value, hit, err := s.Get(ctx, models.CacheNamespaceCaptions, CaptionKey(topic, style, templateID, count))
	if err != nil || !hit {
		return nil, false, err
	}
	var variations []models.Variation
	if err := json.Unmarshal(value, &variations); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached captions: %w", err)
	}
	return variations, true, nil
}

// PutCaptions caches caption variations under the request-derived key. The
// count is the requested variation count, which may exceed what the provider
// actually produced; keying on the request keeps lookups symmetric.
func (s *Store) PutCaptions(ctx context.Context, topic, style, templateID string, count int, variations []models.Variation) error {
	value, err := json.Marshal(variations)
	if err != nil {
		return fmt.Errorf("marshal captions: %w", err)
	}
	return s.Put(ctx, models.CacheNamespaceCaptions, CaptionKey(topic, style, templateID, count), value, 0)
}

// GetJobResults returns the final ordered result groups for a completed job,
// or a miss once the job-results TTL has lapsed.
func (s *Store) GetJobResults(ctx context.Context, jobID uuid.UUID) ([]models.ResultGroup, bool, error) {
	value, hit, err := s.Get(ctx, models.CacheNamespaceJobResults, JobResultKey(jobID))
	if err != nil || !hit {
		return nil, false, err
	}
	var groups []models.ResultGroup
	if err := json.Unmarshal(value, &groups); err != nil {
		return nil, false, fmt.Errorf("unmarshal job results: %w", err)
	}
	return groups, true, nil
}

// PutJobResults caches a job's final result set under the job's own key.
func (s *Store) PutJobResults(ctx context.Context, jobID uuid.UUID, groups []models.ResultGroup) error {
	value, err := json.Marshal(groups)
	if err != nil {
		return fmt.Errorf("marshal job results: %w", err)
	}
	return s.Put(ctx, models.CacheNamespaceJobResults, JobResultKey(jobID), value, 0)
}
