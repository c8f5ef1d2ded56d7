package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"timetable-backend/internal/schedule"
	"timetable-backend/internal/search"
	"timetable-backend/internal/store"
)

// IdentityChecker asks the provider whether it has a schedule for an identity.
type IdentityChecker interface {
	CheckIdentity(ctx context.Context, identity string) error
}

// Searcher answers identity lookups.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Result, error)
}

// Deps are the collaborators of the API handlers. DB and WebPush may be nil
// when push delivery is disabled.
type Deps struct {
	Registry         *schedule.Registry
	Entries          *store.EntryStore
	Prefs            *store.Preferences
	Search           Searcher
	Checker          IdentityChecker
	DB               *gorm.DB
	WebPush          *webpush.Options
	RecurringSubject string
	Log              *zap.Logger
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	registry         *schedule.Registry
	entries          *store.EntryStore
	prefs            *store.Preferences
	search           Searcher
	checker          IdentityChecker
	db               *gorm.DB
	webpush          *webpush.Options
	recurringSubject string
	log              *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		registry:         deps.Registry,
		entries:          deps.Entries,
		prefs:            deps.Prefs,
		search:           deps.Search,
		checker:          deps.Checker,
		db:               deps.DB,
		webpush:          deps.WebPush,
		recurringSubject: deps.RecurringSubject,
		log:              log.Named("api"),
	}
}

func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, schedule.ErrIdentityUnset):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error(), "selectIdentity": true})
	case errors.Is(err, schedule.ErrBusy):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, schedule.ErrClosed):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
