package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/kv"
)

// Preference keys in the KV store.
const (
	DefaultIdentityKey = "@group_name"
	DaysMarginKey      = "daysMargin"
)

// Preferences holds the user settings persisted next to the caches.
type Preferences struct {
	kv                kv.Store
	defaultDaysMargin int
	log               *zap.Logger
}

// NewPreferences creates a preference accessor. defaultDaysMargin is used
// until the user saves a value.
func NewPreferences(store kv.Store, defaultDaysMargin int, log *zap.Logger) *Preferences {
	if config.ValidateDaysMargin(defaultDaysMargin) != nil {
		defaultDaysMargin = config.DefaultDaysMargin
	}
	return &Preferences{kv: store, defaultDaysMargin: defaultDaysMargin, log: log.Named("prefs")}
}

// DefaultIdentity returns the saved default identity, or "" when unset.
func (p *Preferences) DefaultIdentity(ctx context.Context) string {
	v, found, err := p.kv.Get(ctx, DefaultIdentityKey)
	if err != nil {
		p.log.Warn("default identity read failed", zap.Error(err))
		return ""
	}
	if !found {
		return ""
	}
	return strings.TrimSpace(v)
}

// SetDefaultIdentity saves identity as the default. An empty identity clears it.
func (p *Preferences) SetDefaultIdentity(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return p.kv.Remove(ctx, DefaultIdentityKey)
	}
	return p.kv.Set(ctx, DefaultIdentityKey, identity)
}

// DaysMargin returns the fetch window size in days.
func (p *Preferences) DaysMargin(ctx context.Context) int {
	v, found, err := p.kv.Get(ctx, DaysMarginKey)
	if err != nil || !found {
		return p.defaultDaysMargin
	}
	days, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || config.ValidateDaysMargin(days) != nil {
		p.log.Warn("ignoring invalid stored days margin", zap.String("value", v))
		return p.defaultDaysMargin
	}
	return days
}

// SetDaysMargin validates and saves the fetch window size.
func (p *Preferences) SetDaysMargin(ctx context.Context, days int) error {
	if err := config.ValidateDaysMargin(days); err != nil {
		return fmt.Errorf("set days margin %d: %w", days, err)
	}
	return p.kv.Set(ctx, DaysMarginKey, strconv.Itoa(days))
}
