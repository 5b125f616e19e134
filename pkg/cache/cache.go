// Package cache implements the content-addressed on-disk review cache:
// one JSON file per cache key under the platform config directory,
// keyed by sha256 of a canonical JSON encoding of the request.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

// DefaultTTL is the lifetime of a fresh cache entry.
const DefaultTTL = time.Hour

// Request identifies a prior review call for cache lookup purposes.
type Request struct {
	DiffContent    string
	Model          string
	UseFullContext bool
}

// Key computes the cache key: sha256(utf8(json(sorted({diff_content,
// model, use_full_context})))), lowercase hex. Go's encoding/json already
// sorts map keys alphabetically, which is exactly the canonicalization
// the external interface calls for.
func Key(req Request) string {
	canonical := map[string]interface{}{
		"diff_content":     req.DiffContent,
		"model":            req.Model,
		"use_full_context": req.UseFullContext,
	}
	// Marshal error is impossible for this fixed, JSON-safe shape.
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// entry is the exact on-disk shape of a cache file.
type entry struct {
	CacheKey       string                 `json:"cache_key"`
	CreatedAt      time.Time              `json:"created_at"`
	ExpiresAt      time.Time              `json:"expires_at"`
	RequestInfo    map[string]interface{} `json:"request_info"`
	ReviewResponse review.ReviewResponse  `json:"review_response"`
	EstimatedCost  *review.EstimatedCost  `json:"estimated_cost"`
	LogID          *string                `json:"log_id"`
}

// Cache reads and writes cache entries in dir. A non-positive TTL passed
// to New is replaced by DefaultTTL.
type Cache struct {
	dir string
	ttl time.Duration
}

// New constructs a Cache rooted at dir, creating it if necessary.
func New(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: cannot create directory %s: %w", dir, err)
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get looks up a prior review. A missing file, an unparseable file, or an
// expired file are all treated as a miss; an unparseable or expired file
// is additionally deleted as a side effect.
func (c *Cache) Get(req Request) (*review.ReviewResponse, *review.EstimatedCost, bool) {
	key := Key(req)
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		metrics.Default().RecordCacheMiss()
		return nil, nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		metrics.Default().RecordCacheMiss()
		return nil, nil, false
	}

	if time.Now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		metrics.Default().RecordCacheMiss()
		return nil, nil, false
	}

	metrics.Default().RecordCacheHit()
	return &e.ReviewResponse, e.EstimatedCost, true
}

// Put writes a successful review result under its content-addressed key.
// logID, if non-empty, is recorded on the entry; otherwise a fresh one is
// generated so every cache hit can still be traced back to its write.
func (c *Cache) Put(req Request, resp review.ReviewResponse, cost review.EstimatedCost, logID string) error {
	key := Key(req)
	now := time.Now()

	if logID == "" {
		logID = uuid.NewString()
	}

	e := entry{
		CacheKey:  key,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		RequestInfo: map[string]interface{}{
			"model":            req.Model,
			"use_full_context": req.UseFullContext,
		},
		ReviewResponse: resp,
		EstimatedCost:  &cost,
		LogID:          &logID,
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	return os.WriteFile(c.path(key), data, 0o644)
}

// Clear deletes every cache file in the directory.
func (c *Cache) Clear() error {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// CleanupExpired scans the directory and removes every file that is
// unparseable or past its expires_at.
func (c *Cache) CleanupExpired() (removed int, err error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, m := range matches {
		data, readErr := os.ReadFile(m)
		if readErr != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil || now.After(e.ExpiresAt) {
			if rmErr := os.Remove(m); rmErr == nil {
				removed++
			}
		}
	}
	return removed, nil
}
