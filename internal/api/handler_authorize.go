package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

type authorizeRequest struct {
	BoardAddress    string `json:"board_address" binding:"required"`
	DoorNumber      int    `json:"door_number" binding:"required"`
	CredentialValue string `json:"credential_value" binding:"required"`
	CredentialType  string `json:"credential_type" binding:"required,oneof=card pin"`
}

// Authorize handles POST /api/authorize, the decision entry point called by
// the relay boards. Policy denials come back as 200 with granted=false; only
// an unknown board/door is an error status.
func (h *Handler) Authorize(c *gin.Context) {
	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdict, err := h.engine.Authorize(c.Request.Context(),
		req.BoardAddress, req.DoorNumber, req.CredentialValue,
		model.CredentialType(req.CredentialType))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown board or door"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, verdict)
}
