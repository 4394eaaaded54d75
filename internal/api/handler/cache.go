package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/memenem/memenem/internal/api/response"
)

// CacheAdmin exposes the cache maintenance surface.
type CacheAdmin interface {
	Stats(ctx context.Context) (map[string]int64, error)
	Sweep(ctx context.Context) (map[string]int64, error)
}

// NewCacheStatsHandler returns the handler for GET /api/v1/cache/stats.
func NewCacheStatsHandler(admin CacheAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := admin.Stats(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to read cache stats", nil)
			return
		}
		response.JSON(w, map[string]any{"entries": counts})
	}
}

// NewCacheCleanupHandler returns the handler for POST /api/v1/cache/cleanup.
// The sweep runs in the background; the handler acknowledges immediately.
func NewCacheCleanupHandler(admin CacheAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		go func() {
			counts, err := admin.Sweep(context.Background())
			if err != nil {
				slog.Error("manual cache sweep failed", "error", err)
				return
			}
			slog.Info("manual cache sweep finished", "deleted", counts)
		}()

		response.Accepted(w, map[string]string{"status": "cleanup started"})
	}
}
