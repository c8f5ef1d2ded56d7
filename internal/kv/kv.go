// Package kv provides the string-keyed persistent store the schedule caches
// are built on: get, set, enumerate keys and remove, nothing more.
package kv

import "context"

// Store is a flat string key-value store. Set replaces the whole value
// atomically; readers never observe a partially written value.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Keys(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, key string) error
}
