package store

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"timetable-backend/internal/kv"
	"timetable-backend/internal/model"
	"timetable-backend/internal/parse"
)

// ScheduleKeyPrefix namespaces per-identity schedule snapshots in the KV store.
const ScheduleKeyPrefix = "scheduleData_"

// ScheduleKey returns the cache key for identity.
func ScheduleKey(identity string) string {
	return ScheduleKeyPrefix + identity
}

// EntryStore is the durable per-identity cache of lesson records.
// Every write replaces the full record list of one identity.
type EntryStore struct {
	kv  kv.Store
	log *zap.Logger
}

// NewEntryStore creates an entry store on top of a key-value store.
func NewEntryStore(store kv.Store, log *zap.Logger) *EntryStore {
	return &EntryStore{kv: store, log: log.Named("entries")}
}

// Read returns the cached records for identity. Storage and decoding
// failures are logged and reported as a miss.
func (s *EntryStore) Read(ctx context.Context, identity string) ([]model.LessonRecord, bool) {
	key := ScheduleKey(identity)
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache read failed, treating as miss", zap.String("identity", identity), zap.Error(&CacheError{Op: "read", Key: key, Err: err}))
		return nil, false
	}
	if !found {
		return nil, false
	}
	records, err := parse.Normalize([]byte(raw), identity)
	if err != nil {
		s.log.Warn("cached snapshot is unreadable, treating as miss", zap.String("identity", identity), zap.Error(err))
		return nil, false
	}
	return records, true
}

// Write replaces the cached records for identity.
func (s *EntryStore) Write(ctx context.Context, identity string, records []model.LessonRecord) error {
	key := ScheduleKey(identity)
	if records == nil {
		records = []model.LessonRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return &CacheError{Op: "write", Key: key, Err: err}
	}
	s.log.Debug("snapshot persisted", zap.String("identity", identity), zap.Int("records", len(records)))
	return nil
}

// Exists reports whether a snapshot is cached for identity.
func (s *EntryStore) Exists(ctx context.Context, identity string) bool {
	_, found, err := s.kv.Get(ctx, ScheduleKey(identity))
	if err != nil {
		s.log.Warn("cache existence check failed", zap.String("identity", identity), zap.Error(err))
		return false
	}
	return found
}

// ListIdentitiesWithData enumerates identities that have a cached snapshot.
func (s *EntryStore) ListIdentitiesWithData(ctx context.Context) []string {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		s.log.Warn("cache key listing failed", zap.Error(err))
		return nil
	}
	var identities []string
	for _, k := range keys {
		if id, ok := strings.CutPrefix(k, ScheduleKeyPrefix); ok && id != "" {
			identities = append(identities, id)
		}
	}
	return identities
}
