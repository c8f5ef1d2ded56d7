package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/fetcher"
	"timetable-backend/internal/model"
	"timetable-backend/internal/schedule"
)

const msgIdentityNotFound = "На сервере нет расписания этой группы."

type preferencesResponse struct {
	DefaultIdentity string `json:"defaultIdentity"`
	DaysMargin      int    `json:"daysMargin"`
	MinDaysMargin   int    `json:"minDaysMargin"`
	MaxDaysMargin   int    `json:"maxDaysMargin"`
}

func (h *Handler) preferences(c *gin.Context) preferencesResponse {
	ctx := c.Request.Context()
	return preferencesResponse{
		DefaultIdentity: h.prefs.DefaultIdentity(ctx),
		DaysMargin:      h.prefs.DaysMargin(ctx),
		MinDaysMargin:   config.MinDaysMargin,
		MaxDaysMargin:   config.MaxDaysMargin,
	}
}

// GetPreferences handles GET /api/preferences.
func (h *Handler) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.preferences(c))
}

type putDaysMarginRequest struct {
	Days int `json:"days" binding:"required"`
}

// PutDaysMargin handles PUT /api/preferences/days-margin.
func (h *Handler) PutDaysMargin(c *gin.Context) {
	var req putDaysMarginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.prefs.SetDaysMargin(c.Request.Context(), req.Days); err != nil {
		if errors.Is(err, config.ErrDaysMarginOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.preferences(c))
}

type putIdentityRequest struct {
	Identity string `json:"identity"`
}

// PutDefaultIdentity handles PUT /api/preferences/identity. The identity is
// checked upstream before it is saved; an empty identity clears it.
func (h *Handler) PutDefaultIdentity(c *gin.Context) {
	var req putIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ctx := c.Request.Context()
	identity := model.NormalizeIdentity(req.Identity)

	if identity != "" {
		if err := h.checker.CheckIdentity(ctx, identity); err != nil {
			if errors.Is(err, fetcher.ErrIdentityNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": msgIdentityNotFound})
				return
			}
			h.log.Warn("identity check failed", zap.String("identity", identity), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "identity check is unavailable"})
			return
		}
	}

	if err := h.prefs.SetDefaultIdentity(ctx, identity); err != nil {
		h.abortWithError(c, err)
		return
	}
	if err := h.registry.Default().SetIdentity(ctx, identity); err != nil && !errors.Is(err, schedule.ErrIdentityUnset) {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.preferences(c))
}
