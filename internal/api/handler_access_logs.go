package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetAccessLogs handles GET /api/access_logs, newest first.
func (h *Handler) GetAccessLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	entries, err := h.store.AccessLogs(c.Request.Context(), limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve access logs"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
