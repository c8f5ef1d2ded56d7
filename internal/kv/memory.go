package kv

import (
	"context"
	"sort"

	"github.com/patrickmn/go-cache"
)

// memoryStore keeps values in process memory. It is used when no database
// is configured and by tests.
type memoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates an in-process store whose entries never expire.
func NewMemoryStore() Store {
	return &memoryStore{c: cache.New(cache.NoExpiration, 0)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, found := s.c.Get(key)
	if !found {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.c.Set(key, value, cache.NoExpiration)
	return nil
}

func (s *memoryStore) Keys(_ context.Context) ([]string, error) {
	items := s.c.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}
