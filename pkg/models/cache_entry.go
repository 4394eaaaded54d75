package models

import "time"

// Cache namespaces. Each namespace carries its own TTL; the namespace of an
// entry doubles as its TTL class.
const (
	CacheNamespaceTemplates  = "templates"
	CacheNamespaceCaptions   = "captions"
	CacheNamespaceJobResults = "job-results"
)

// CacheEntry is one row in the durable cache. Freshness is always computed
// from CreatedAt plus the namespace TTL, never from the storage engine.
type CacheEntry struct {
	Namespace string    `db:"namespace"  json:"namespace"`
	Key       string    `db:"key"        json:"key"`
	Value     []byte    `db:"value"      json:"-"`
	Weight    float64   `db:"weight"     json:"weight"`
	HitCount  int64     `db:"hit_count"  json:"hit_count"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
