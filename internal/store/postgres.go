package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/memenem/memenem/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	params, err := json.Marshal(job.RequestParams)
	if err != nil {
		return fmt.Errorf("marshal request params: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, progress, total_templates, completed_templates, request_params, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.Status, job.Progress, job.TotalTemplates, job.CompletedTemplates,
		params, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, status, progress, total_templates, completed_templates, error_message, request_params, completed_at, created_at, updated_at
		 FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

var validTransitions = map[string][]string{
	models.JobStatusQueued:     {models.JobStatusProcessing, models.JobStatusCancelled},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled},
}

// UpdateJob applies a partial merge to the job record. A status option is
// validated against the legal transition edges; terminal states are frozen.
func (s *PostgresStore) UpdateJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error {
	params := &JobUpdate{}
	for _, opt := range opts {
		opt(params)
	}

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	if params.Status != nil {
		allowed := validTransitions[currentStatus]
		valid := false
		for _, a := range allowed {
			if a == *params.Status {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, currentStatus, *params.Status)
		}
	} else if models.TerminalStatus(currentStatus) {
		// Progress and counter updates racing a terminal transition are dropped
		// rather than resurrecting the record.
		return fmt.Errorf("%w: job already %s", ErrInvalidTransition, currentStatus)
	}

	now := time.Now().UTC()
	query := `UPDATE jobs SET updated_at = $2`
	args := []any{id, now}
	argIdx := 3

	if params.Status != nil {
		query += fmt.Sprintf(", status = $%d", argIdx)
		args = append(args, *params.Status)
		argIdx++

		if *params.Status == models.JobStatusCompleted || *params.Status == models.JobStatusFailed {
			query += fmt.Sprintf(", completed_at = $%d", argIdx)
			args = append(args, now)
			argIdx++
		}
		if *params.Status == models.JobStatusCompleted {
			query += ", progress = 100"
		}
	}
	if params.Progress != nil {
		p := *params.Progress
		if p < 0 {
			p = 0
		}
		if p > 100 {
			p = 100
		}
		// Progress is monotonically non-decreasing while processing.
		query += fmt.Sprintf(", progress = GREATEST(progress, $%d)", argIdx)
		args = append(args, p)
		argIdx++
	}
	if params.TotalTemplates != nil {
		query += fmt.Sprintf(", total_templates = $%d", argIdx)
		args = append(args, *params.TotalTemplates)
		argIdx++
	}
	if params.CompletedTemplates != nil {
		query += fmt.Sprintf(", completed_templates = $%d", argIdx)
		args = append(args, *params.CompletedTemplates)
		argIdx++
	}
	if params.ErrorMessage != nil {
		query += fmt.Sprintf(", error_message = $%d", argIdx)
		args = append(args, *params.ErrorMessage)
		argIdx++
	}

	// Compare-and-set on the status the transition was validated against, so
	// a concurrent transition cannot be overwritten after the fact.
	query += fmt.Sprintf(" WHERE id = $1 AND status = $%d", argIdx)
	args = append(args, currentStatus)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var latest string
		err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&latest)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job status: %w", err)
		}
		return fmt.Errorf("%w: job moved to %s concurrently", ErrInvalidTransition, latest)
	}
	return nil
}

func (s *PostgresStore) ListRecentJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 20 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, progress, total_templates, completed_templates, error_message, request_params, completed_at, created_at, updated_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) DeleteFinishedJobsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE updated_at < $1 AND status = ANY($2)`,
		cutoff, []string{models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled})
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var rawParams []byte
	if err := row.Scan(&j.ID, &j.Status, &j.Progress, &j.TotalTemplates, &j.CompletedTemplates,
		&j.ErrorMessage, &rawParams, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &j.RequestParams); err != nil {
			return nil, fmt.Errorf("unmarshal request params: %w", err)
		}
	}
	return &j, nil
}

// --- Cache entries ---

func (s *PostgresStore) UpsertCacheEntry(ctx context.Context, entry *models.CacheEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cache_entries (namespace, key, value, weight, hit_count, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5)
		 ON CONFLICT (namespace, key) DO UPDATE SET
		   value = EXCLUDED.value,
		   weight = EXCLUDED.weight,
		   created_at = EXCLUDED.created_at`,
		entry.Namespace, entry.Key, entry.Value, entry.Weight, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCacheEntry(ctx context.Context, namespace, key string) (*models.CacheEntry, error) {
	var e models.CacheEntry
	err := s.pool.QueryRow(ctx,
		`SELECT namespace, key, value, weight, hit_count, created_at
		 FROM cache_entries WHERE namespace = $1 AND key = $2`, namespace, key,
	).Scan(&e.Namespace, &e.Key, &e.Value, &e.Weight, &e.HitCount, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return &e, nil
}

// ListCacheEntries returns entries in a namespace ordered by weight
// descending. Freshness filtering is the caller's job.
func (s *PostgresStore) ListCacheEntries(ctx context.Context, namespace string, limit int) ([]*models.CacheEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT namespace, key, value, weight, hit_count, created_at
		 FROM cache_entries WHERE namespace = $1 ORDER BY weight DESC, key LIMIT $2`,
		namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		if err := rows.Scan(&e.Namespace, &e.Key, &e.Value, &e.Weight, &e.HitCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) IncrementCacheHit(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cache_entries SET hit_count = hit_count + 1 WHERE namespace = $1 AND key = $2`,
		namespace, key)
	if err != nil {
		return fmt.Errorf("increment cache hit: %w", err)
	}
	return nil
}

// DeleteExpiredCacheEntries removes entries created before cutoff, except
// entries at or above weightFloor, which survive until protectedCutoff.
// Delete-if-still-expired semantics make this safe to run concurrently.
func (s *PostgresStore) DeleteExpiredCacheEntries(ctx context.Context, namespace string, cutoff time.Time, weightFloor float64, protectedCutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cache_entries
		 WHERE namespace = $1
		   AND ((weight < $2 AND created_at < $3) OR created_at < $4)`,
		namespace, weightFloor, cutoff, protectedCutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CountCacheEntries(ctx context.Context) (map[string]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT namespace, COUNT(*) FROM cache_entries GROUP BY namespace`)
	if err != nil {
		return nil, fmt.Errorf("count cache entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var ns string
		var n int64
		if err := rows.Scan(&ns, &n); err != nil {
			return nil, fmt.Errorf("scan cache count: %w", err)
		}
		counts[ns] = n
	}
	return counts, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
