package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"timetable-backend/internal/kv"
	"timetable-backend/internal/model"
)

// SearchKeyPrefix namespaces cached lookup results in the KV store.
const SearchKeyPrefix = "searchCache_"

// DefaultSearchCacheSize is the number of queries retained.
const DefaultSearchCacheSize = 20

// SearchCacheEntry is one cached lookup.
type SearchCacheEntry struct {
	Results   []model.SearchResult `json:"results"`
	Timestamp time.Time            `json:"timestamp"`
}

// NormalizeQuery lowercases and trims a lookup query.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// SearchCache keeps the most recently inserted lookups. Eviction follows
// insertion order; reading an entry does not refresh it.
type SearchCache struct {
	kv    kv.Store
	limit int
	now   func() time.Time
	log   *zap.Logger

	mu sync.Mutex
}

// NewSearchCache creates a search cache retaining at most limit queries.
func NewSearchCache(store kv.Store, limit int, log *zap.Logger) *SearchCache {
	if limit <= 0 {
		limit = DefaultSearchCacheSize
	}
	return &SearchCache{kv: store, limit: limit, now: time.Now, log: log.Named("search_cache")}
}

// Get returns the cached entry for query.
func (c *SearchCache) Get(ctx context.Context, query string) (SearchCacheEntry, bool) {
	key := SearchKeyPrefix + NormalizeQuery(query)
	raw, found, err := c.kv.Get(ctx, key)
	if err != nil {
		c.log.Warn("search cache read failed", zap.String("key", key), zap.Error(err))
		return SearchCacheEntry{}, false
	}
	if !found {
		return SearchCacheEntry{}, false
	}
	var entry SearchCacheEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.log.Warn("search cache entry is unreadable", zap.String("key", key), zap.Error(err))
		return SearchCacheEntry{}, false
	}
	return entry, true
}

// Put stores results for query and evicts the oldest insertions beyond the limit.
func (c *SearchCache) Put(ctx context.Context, query string, results []model.SearchResult) error {
	key := SearchKeyPrefix + NormalizeQuery(query)
	if results == nil {
		results = []model.SearchResult{}
	}
	data, err := json.Marshal(SearchCacheEntry{Results: results, Timestamp: c.now()})
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.kv.Set(ctx, key, string(data)); err != nil {
		return &CacheError{Op: "write", Key: key, Err: err}
	}
	return c.evict(ctx)
}

func (c *SearchCache) evict(ctx context.Context) error {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		return &CacheError{Op: "list", Key: SearchKeyPrefix, Err: err}
	}

	type stamped struct {
		key string
		at  time.Time
	}
	var entries []stamped
	for _, k := range keys {
		if !strings.HasPrefix(k, SearchKeyPrefix) {
			continue
		}
		raw, found, err := c.kv.Get(ctx, k)
		if err != nil || !found {
			continue
		}
		var entry SearchCacheEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			// Unreadable entries sort first and go out with the oldest.
			entries = append(entries, stamped{key: k})
			continue
		}
		entries = append(entries, stamped{key: k, at: entry.Timestamp})
	}
	if len(entries) <= c.limit {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })
	for _, e := range entries[:len(entries)-c.limit] {
		if err := c.kv.Remove(ctx, e.key); err != nil {
			return &CacheError{Op: "evict", Key: e.key, Err: err}
		}
		c.log.Debug("search cache entry evicted", zap.String("key", e.key))
	}
	return nil
}
