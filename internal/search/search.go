package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"timetable-backend/internal/model"
	"timetable-backend/internal/store"
)

// Upstream looks identities up at the provider.
type Upstream interface {
	Search(ctx context.Context, query string) ([]model.SearchResult, error)
}

// lookupTimeout bounds a shared upstream lookup once it is detached from
// the caller that started it.
const lookupTimeout = 10 * time.Second

// Result is the answer to a lookup.
type Result struct {
	Query     string               `json:"query"`
	Results   []model.SearchResult `json:"results"`
	Cached    bool                 `json:"cached"`
	Timestamp time.Time            `json:"timestamp"`
}

// Service answers lookups from the search cache, asking upstream once per
// query on a miss even when many callers miss at the same time.
type Service struct {
	upstream Upstream
	cache    *store.SearchCache
	group    singleflight.Group
	log      *zap.Logger
}

// NewService creates a lookup service.
func NewService(upstream Upstream, cache *store.SearchCache, log *zap.Logger) *Service {
	return &Service{upstream: upstream, cache: cache, log: log.Named("search")}
}

// Search returns the results for query. A blank query yields no results
// and no upstream call.
func (s *Service) Search(ctx context.Context, query string) (Result, error) {
	key := store.NormalizeQuery(query)
	if key == "" {
		return Result{Query: key, Results: []model.SearchResult{}}, nil
	}

	if entry, ok := s.cache.Get(ctx, key); ok {
		return Result{Query: key, Results: entry.Results, Cached: true, Timestamp: entry.Timestamp}, nil
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Joined callers must not fail because the first one went away.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()

		results, err := s.upstream.Search(lookupCtx, key)
		if err != nil {
			return nil, err
		}
		if results == nil {
			results = []model.SearchResult{}
		}
		if err := s.cache.Put(lookupCtx, key, results); err != nil {
			s.log.Warn("failed to cache search results", zap.String("query", key), zap.Error(err))
		}
		return Result{Query: key, Results: results, Timestamp: time.Now()}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	if res.Err != nil {
		return Result{}, res.Err
	}
	if res.Shared {
		s.log.Debug("search joined in-flight lookup", zap.String("query", key))
	}
	return res.Val.(Result), nil
}
