package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetSearch handles GET /api/search?q=.
func (h *Handler) GetSearch(c *gin.Context) {
	res, err := h.search.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.log.Warn("search failed", zap.String("query", c.Query("q")), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "search is unavailable"})
		return
	}
	c.JSON(http.StatusOK, res)
}
