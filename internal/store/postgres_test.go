package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memenem/memenem/internal/store"
	"github.com/memenem/memenem/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("memenem_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newJob builds a queued job with the given ID and default request params.
func newJob(id uuid.UUID) *models.Job {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Job{
		ID:     id,
		Status: models.JobStatusQueued,
		RequestParams: models.RequestParams{
			Topic:                 "remote work",
			Style:                 "sarcastic",
			MaxTemplates:          5,
			VariationsPerTemplate: 3,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// --- Ping ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Equal(t, float64(0), got.Progress)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, "remote work", got.RequestParams.Topic)
	assert.Equal(t, "sarcastic", got.RequestParams.Style)
	assert.Equal(t, 5, got.RequestParams.MaxTemplates)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_CreateDuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, s.CreateJob(ctx, newJob(id)))

	err := s.CreateJob(ctx, newJob(id))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestJob_QueuedToProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestJob_ProcessingToCompleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing)))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithProgress(60)))

	err := s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCompleted))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, float64(100), got.Progress) // completion forces 100
	assert.NotNil(t, got.CompletedAt)
}

func TestJob_ProcessingToFailed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing)))

	err := s.UpdateJob(ctx, job.ID,
		store.WithStatus(models.JobStatusFailed),
		store.WithErrorMessage("caption provider timeout"))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.NotNil(t, got.CompletedAt)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "caption provider timeout", *got.ErrorMessage)
}

func TestJob_CancelFromQueued(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCancelled))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
}

func TestJob_InvalidTransition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))

	// queued -> completed skips processing
	err := s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCompleted))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestJob_TerminalStateFrozen(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCancelled)))

	// Status changes out of a terminal state are rejected.
	err := s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	// So are plain progress writes racing the cancellation.
	err = s.UpdateJob(ctx, job.ID, store.WithProgress(80))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, got.Status)
	assert.Equal(t, float64(0), got.Progress)
}

func TestJob_ConcurrentTerminalWritesRaceOnce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing)))

	// Both transitions are individually legal from processing; the write is
	// conditional on the validated status, so exactly one may win.
	results := make(chan error, 2)
	go func() {
		results <- s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCancelled))
	}()
	go func() {
		results <- s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusCompleted))
	}()

	errs := []error{<-results, <-results}
	var failures int
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, store.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, failures)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, models.TerminalStatus(got.Status))

	// Whichever state won, it stays won.
	err = s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing))
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestJob_ProgressNeverDecreases(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing)))

	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithProgress(40)))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithProgress(20)))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(40), got.Progress)
}

func TestJob_ProgressClamped(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithStatus(models.JobStatusProcessing)))

	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithProgress(250)))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(100), got.Progress)
}

func TestJob_UpdateCounters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	job := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, job))
	require.NoError(t, s.UpdateJob(ctx, job.ID,
		store.WithStatus(models.JobStatusProcessing),
		store.WithTotalTemplates(4)))
	require.NoError(t, s.UpdateJob(ctx, job.ID, store.WithCompletedTemplates(2)))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalTemplates)
	assert.Equal(t, 2, got.CompletedTemplates)
}

func TestJob_UpdateNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateJob(context.Background(), uuid.New(), store.WithStatus(models.JobStatusProcessing))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_ListRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		job := newJob(uuid.New())
		job.CreatedAt = base.Add(time.Duration(i) * time.Second)
		job.UpdatedAt = job.CreatedAt
		require.NoError(t, s.CreateJob(ctx, job))
	}

	jobs, err := s.ListRecentJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	// Newest first
	assert.True(t, jobs[0].CreatedAt.After(jobs[1].CreatedAt))
	assert.True(t, jobs[1].CreatedAt.After(jobs[2].CreatedAt))
}

func TestJob_DeleteFinishedBefore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	// Finished job old enough to reap
	old := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, old))
	require.NoError(t, s.UpdateJob(ctx, old.ID, store.WithStatus(models.JobStatusCancelled)))

	// Active job, must survive regardless of age
	active := newJob(uuid.New())
	require.NoError(t, s.CreateJob(ctx, active))
	require.NoError(t, s.UpdateJob(ctx, active.ID, store.WithStatus(models.JobStatusProcessing)))

	deleted, err := s.DeleteFinishedJobsBefore(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetJob(ctx, old.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetJob(ctx, active.ID)
	assert.NoError(t, err)
}

// --- Cache Entry Tests ---

func TestCacheEntry_UpsertAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &models.CacheEntry{
		Namespace: models.CacheNamespaceTemplates,
		Key:       "imgflip",
		Value:     []byte(`[{"id":"imgflip_1"}]`),
		Weight:    95,
		CreatedAt: now,
	}
	require.NoError(t, s.UpsertCacheEntry(ctx, entry))

	got, err := s.GetCacheEntry(ctx, models.CacheNamespaceTemplates, "imgflip")
	require.NoError(t, err)
	assert.Equal(t, entry.Value, got.Value)
	assert.Equal(t, float64(95), got.Weight)
	assert.Equal(t, int64(0), got.HitCount)
}

func TestCacheEntry_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetCacheEntry(context.Background(), models.CacheNamespaceCaptions, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCacheEntry_UpsertRefreshesKeepsHits(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	entry := &models.CacheEntry{
		Namespace: models.CacheNamespaceCaptions,
		Key:       "topic-key",
		Value:     []byte("v1"),
		Weight:    40,
		CreatedAt: now,
	}
	require.NoError(t, s.UpsertCacheEntry(ctx, entry))
	require.NoError(t, s.IncrementCacheHit(ctx, entry.Namespace, entry.Key))

	later := now.Add(time.Minute)
	require.NoError(t, s.UpsertCacheEntry(ctx, &models.CacheEntry{
		Namespace: entry.Namespace,
		Key:       entry.Key,
		Value:     []byte("v2"),
		Weight:    70,
		CreatedAt: later,
	}))

	got, err := s.GetCacheEntry(ctx, entry.Namespace, entry.Key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got.Value)
	assert.Equal(t, float64(70), got.Weight)
	assert.Equal(t, later, got.CreatedAt.UTC().Truncate(time.Microsecond))
	// Hit count survives the refresh
	assert.Equal(t, int64(1), got.HitCount)
}

func TestCacheEntry_ListOrderedByWeight(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	for key, weight := range map[string]float64{"low": 10, "high": 90, "mid": 50} {
		require.NoError(t, s.UpsertCacheEntry(ctx, &models.CacheEntry{
			Namespace: models.CacheNamespaceTemplates,
			Key:       key,
			Value:     []byte("{}"),
			Weight:    weight,
			CreatedAt: now,
		}))
	}

	entries, err := s.ListCacheEntries(ctx, models.CacheNamespaceTemplates, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "high", entries[0].Key)
	assert.Equal(t, "mid", entries[1].Key)
	assert.Equal(t, "low", entries[2].Key)
}

func TestCacheEntry_SweepProtectsPopular(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	stale := now.Add(-2 * time.Hour)

	for key, weight := range map[string]float64{"unpopular": 20, "popular": 80} {
		require.NoError(t, s.UpsertCacheEntry(ctx, &models.CacheEntry{
			Namespace: models.CacheNamespaceTemplates,
			Key:       key,
			Value:     []byte("{}"),
			Weight:    weight,
			CreatedAt: stale,
		}))
	}

	// TTL cutoff is 1h ago; the protected window reaches back 24h.
	cutoff := now.Add(-time.Hour)
	protectedCutoff := now.Add(-24 * time.Hour)
	deleted, err := s.DeleteExpiredCacheEntries(ctx, models.CacheNamespaceTemplates, cutoff, 50, protectedCutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = s.GetCacheEntry(ctx, models.CacheNamespaceTemplates, "unpopular")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetCacheEntry(ctx, models.CacheNamespaceTemplates, "popular")
	assert.NoError(t, err)
}

func TestCacheEntry_SweepEventuallyEvictsPopular(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.UpsertCacheEntry(ctx, &models.CacheEntry{
		Namespace: models.CacheNamespaceTemplates,
		Key:       "ancient-popular",
		Value:     []byte("{}"),
		Weight:    99,
		CreatedAt: now.Add(-48 * time.Hour),
	}))

	deleted, err := s.DeleteExpiredCacheEntries(ctx, models.CacheNamespaceTemplates,
		now.Add(-time.Hour), 50, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestCacheEntry_CountByNamespace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	seed := []struct {
		ns, key string
	}{
		{models.CacheNamespaceTemplates, "a"},
		{models.CacheNamespaceCaptions, "b"},
		{models.CacheNamespaceCaptions, "c"},
	}
	for _, s2 := range seed {
		require.NoError(t, s.UpsertCacheEntry(ctx, &models.CacheEntry{
			Namespace: s2.ns, Key: s2.key, Value: []byte("{}"), Weight: 1, CreatedAt: now,
		}))
	}

	counts, err := s.CountCacheEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.CacheNamespaceTemplates])
	assert.Equal(t, int64(2), counts[models.CacheNamespaceCaptions])
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "mn_abcde",
		Scopes:    []string{"read", "write"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "mn_abcde")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
	assert.Equal(t, []string{"read", "write"}, keys[0].Scopes)
}

func TestAPIKey_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{
			ID:        uuid.New(),
			Name:      "key-" + uuid.NewString()[:4],
			KeyHash:   "hash-" + uuid.NewString()[:4],
			KeyPrefix: "mn_" + uuid.NewString()[:5],
			Scopes:    []string{"read"},
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}

	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "mn_revok",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	// Should not appear in list or prefix lookup
	keys, err := s.ListAPIKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "mn_revok")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		Name:      "usage-key",
		KeyHash:   "hash",
		KeyPrefix: "mn_used1",
		Scopes:    []string{"read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "mn_used1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestAPIKey_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	id := uuid.New()
	key := &models.APIKey{
		ID: id, Name: "dup1", KeyHash: "h1", KeyPrefix: "mn_dup01",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	key2 := &models.APIKey{
		ID: id, Name: "dup2", KeyHash: "h2", KeyPrefix: "mn_dup02",
		Scopes: []string{"read"}, CreatedAt: now, UpdatedAt: now,
	}
	err := s.CreateAPIKey(ctx, key2)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}
