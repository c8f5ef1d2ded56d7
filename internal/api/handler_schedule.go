package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timetable-backend/internal/fetcher"
	"timetable-backend/internal/schedule"
	"timetable-backend/internal/view"
)

type scheduleResponse struct {
	schedule.Snapshot
	Loading             bool       `json:"loading"`
	NotificationVisible bool       `json:"notificationVisible"`
	Days                []view.Day `json:"days"`
}

// controller resolves the ?identity= controller, or the default-identity
// one when the parameter is absent.
func (h *Handler) controller(c *gin.Context) (*schedule.Controller, bool) {
	ctx := c.Request.Context()

	if identity := c.Query("identity"); identity != "" {
		if !h.knownIdentity(c, identity) {
			return nil, false
		}
		ctrl, err := h.registry.Get(ctx, identity)
		if err != nil {
			h.abortWithError(c, err)
			return nil, false
		}
		return ctrl, true
	}

	ctrl := h.registry.Default()
	if ctrl.Identity() == "" {
		saved := h.prefs.DefaultIdentity(ctx)
		if saved == "" {
			h.abortWithError(c, schedule.ErrIdentityUnset)
			return nil, false
		}
		if err := ctrl.SetIdentity(ctx, saved); err != nil {
			h.abortWithError(c, err)
			return nil, false
		}
	}
	return ctrl, true
}

// knownIdentity lets identity through when it already has a controller or
// cached data, and otherwise asks the provider whether it exists.
func (h *Handler) knownIdentity(c *gin.Context, identity string) bool {
	ctx := c.Request.Context()
	if h.registry.Has(identity) || h.entries.Exists(ctx, identity) || h.checker == nil {
		return true
	}
	err := h.checker.CheckIdentity(ctx, identity)
	switch {
	case err == nil:
		return true
	case errors.Is(err, fetcher.ErrIdentityNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msgIdentityNotFound})
	default:
		h.log.Warn("identity check failed", zap.String("identity", identity), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "identity check is unavailable"})
	}
	return false
}

func (h *Handler) respondSchedule(c *gin.Context, snap schedule.Snapshot) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, scheduleResponse{
		Snapshot:            snap,
		Loading:             snap.Loading(),
		NotificationVisible: snap.NotificationVisible(),
		Days:                view.Project(snap.Records, view.Options{RecurringSubject: h.recurringSubject}),
	})
}

// GetSchedule handles GET /api/schedule.
func (h *Handler) GetSchedule(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	h.respondSchedule(c, ctrl.Snapshot())
}

// ReloadSchedule handles POST /api/schedule/reload.
func (h *Handler) ReloadSchedule(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Load(c.Request.Context()); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSchedule(c, ctrl.Snapshot())
}

// LoadMore handles POST /api/schedule/more?anchor=.
func (h *Handler) LoadMore(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.LoadMore(c.Request.Context(), c.Query("anchor")); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSchedule(c, ctrl.Snapshot())
}

// LoadPreviousWeek handles POST /api/schedule/previous.
func (h *Handler) LoadPreviousWeek(c *gin.Context) {
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	if err := ctrl.LoadPreviousWeek(c.Request.Context()); err != nil {
		h.abortWithError(c, err)
		return
	}
	h.respondSchedule(c, ctrl.Snapshot())
}

type putFilterRequest struct {
	Text string `json:"text"`
}

// PutFilter handles PUT /api/schedule/filter. An empty text clears it.
func (h *Handler) PutFilter(c *gin.Context) {
	var req putFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.SetFilter(req.Text)
	h.respondSchedule(c, ctrl.Snapshot())
}

type postPositionRequest struct {
	Date   string `json:"date" binding:"required"`
	Offset int    `json:"offset"`
}

// PostPosition handles POST /api/schedule/positions.
func (h *Handler) PostPosition(c *gin.Context) {
	var req postPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctrl, ok := h.controller(c)
	if !ok {
		return
	}
	ctrl.RecordPosition(req.Date, req.Offset)
	c.Status(http.StatusNoContent)
}

// GetOffline handles GET /api/offline, listing identities with cached data
// and the ones currently kept in sync.
func (h *Handler) GetOffline(c *gin.Context) {
	identities := h.entries.ListIdentitiesWithData(c.Request.Context())
	if identities == nil {
		identities = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"identities": identities, "live": h.registry.Identities()})
}
