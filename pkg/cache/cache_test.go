package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/review"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(dir, time.Hour)
	require.NoError(t, err)
	return c
}

func TestCacheMissOnFreshDirectory(t *testing.T) {
	c := newTestCache(t)
	req := Request{DiffContent: "+x=1\n", Model: "gpt-4o", UseFullContext: true}

	_, _, hit := c.Get(req)
	require.False(t, hit)
}

func TestCacheHitAfterPut(t *testing.T) {
	c := newTestCache(t)
	req := Request{DiffContent: "+x=1\n", Model: "gpt-4o", UseFullContext: true}
	resp := review.ReviewResponse{Summary: "looks fine", Recommendations: []string{"nothing"}}
	cost := review.EstimatedCost{Model: "gpt-4o", TotalCostUSD: 0.01}

	require.NoError(t, c.Put(req, resp, cost, ""))

	got, gotCost, hit := c.Get(req)
	require.True(t, hit)
	require.Equal(t, resp, *got)
	require.Equal(t, cost, *gotCost)
}

func TestCacheKeyDeterminism(t *testing.T) {
	r1 := Request{DiffContent: "a", Model: "gpt-4o", UseFullContext: true}
	r2 := Request{DiffContent: "a", Model: "gpt-4o", UseFullContext: true}
	r3 := Request{DiffContent: "b", Model: "gpt-4o", UseFullContext: true}

	require.Equal(t, Key(r1), Key(r2))
	require.NotEqual(t, Key(r1), Key(r3))
	require.Len(t, Key(r1), 64)
}

func TestCacheExpiryIsTreatedAsMissAndDeletesFile(t *testing.T) {
	c := newTestCache(t)
	req := Request{DiffContent: "x", Model: "gpt-4o", UseFullContext: false}
	resp := review.ReviewResponse{Summary: "s"}
	cost := review.EstimatedCost{Model: "gpt-4o"}

	require.NoError(t, c.Put(req, resp, cost, ""))

	path := c.path(Key(req))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["expires_at"] = time.Now().Add(-2 * time.Hour).Format(time.RFC3339Nano)
	rewritten, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, rewritten, 0o644))

	_, _, hit := c.Get(req)
	require.False(t, hit)
	require.NoFileExists(t, path)
}

func TestCacheCorruptedEntryIsTreatedAsMiss(t *testing.T) {
	c := newTestCache(t)
	req := Request{DiffContent: "x", Model: "gpt-4o", UseFullContext: false}

	require.NoError(t, os.WriteFile(c.path(Key(req)), []byte("not json"), 0o644))

	_, _, hit := c.Get(req)
	require.False(t, hit)
}

func TestClearRemovesAllEntries(t *testing.T) {
	c := newTestCache(t)
	for i := 0; i < 3; i++ {
		req := Request{DiffContent: string(rune('a' + i)), Model: "gpt-4o"}
		require.NoError(t, c.Put(req, review.ReviewResponse{}, review.EstimatedCost{}, ""))
	}

	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 3)

	require.NoError(t, c.Clear())

	matches, err = filepath.Glob(filepath.Join(c.dir, "*.json"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestCleanupExpiredRemovesOnlyExpiredEntries(t *testing.T) {
	c := newTestCache(t)

	fresh := Request{DiffContent: "fresh", Model: "gpt-4o"}
	require.NoError(t, c.Put(fresh, review.ReviewResponse{}, review.EstimatedCost{}, ""))

	stale := Request{DiffContent: "stale", Model: "gpt-4o"}
	require.NoError(t, c.Put(stale, review.ReviewResponse{}, review.EstimatedCost{}, ""))
	stalePath := c.path(Key(stale))
	data, err := os.ReadFile(stalePath)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["expires_at"] = time.Now().Add(-time.Hour).Format(time.RFC3339Nano)
	rewritten, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(stalePath, rewritten, 0o644))

	removed, err := c.CleanupExpired()
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, _, hit := c.Get(fresh)
	require.True(t, hit)
	require.NoFileExists(t, stalePath)
}
