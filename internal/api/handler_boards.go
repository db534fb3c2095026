package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"door-access-backend/internal/model"
	"door-access-backend/internal/notify"
	"door-access-backend/internal/store"
)

// boardResponse is the flattened structure for board status display.
type boardResponse struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Address              string     `json:"address"`
	Online               bool       `json:"online"`
	LastSeenAt           *time.Time `json:"last_seen_at"`
	EmergencyMode        string     `json:"emergency_mode"`
	EmergencyActivatedAt *time.Time `json:"emergency_activated_at,omitempty"`
	EmergencyActivatedBy *string    `json:"emergency_activated_by,omitempty"`
	EmergencyAutoResetAt *time.Time `json:"emergency_auto_reset_at,omitempty"`
}

// GetBoards handles GET /api/boards. Online status is recomputed from the
// last heartbeat on every read, and expired emergency unlocks are cleared
// lazily before the state is reported.
func (h *Handler) GetBoards(c *gin.Context) {
	var boards []model.Board
	if err := h.store.DB().WithContext(c.Request.Context()).Order("id ASC").Find(&boards).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve boards"})
		return
	}

	now := h.clock.Now()
	responses := make([]boardResponse, 0, len(boards))
	for i := range boards {
		board := &boards[i]
		// The lazy auto-reset tick runs through Effective with a door
		// carrying no override.
		if _, err := h.emergency.Effective(c.Request.Context(), board, &model.Door{}); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		responses = append(responses, boardResponse{
			ID:                   board.ID,
			Name:                 board.Name,
			Address:              board.Address,
			Online:               board.Online(now, h.engineCfg.BoardOfflineAfter),
			LastSeenAt:           board.LastSeenAt,
			EmergencyMode:        string(board.EmergencyMode),
			EmergencyActivatedAt: board.EmergencyActivatedAt,
			EmergencyActivatedBy: board.EmergencyActivatedBy,
			EmergencyAutoResetAt: board.EmergencyAutoResetAt,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// Heartbeat handles POST /api/boards/:id/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID"})
		return
	}
	if err := h.store.TouchBoard(c.Request.Context(), id, h.clock.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type setEmergencyRequest struct {
	Mode             string `json:"mode" binding:"required,oneof=lock unlock"`
	Actor            string `json:"actor" binding:"required"`
	AutoResetSeconds int    `json:"auto_reset_seconds"`
}

// SetBoardEmergency handles POST /api/boards/:id/emergency.
func (h *Handler) SetBoardEmergency(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID"})
		return
	}
	var req setEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := model.EmergencyMode(req.Mode)
	autoReset := time.Duration(req.AutoResetSeconds) * time.Second
	if err := h.emergency.SetBoardMode(c.Request.Context(), id, mode, req.Actor, autoReset); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.notify != nil {
		h.notify.Dispatch(notify.Event{BoardID: id, Message: "emergency " + req.Mode + " activated by " + req.Actor})
	}
	c.Status(http.StatusNoContent)
}

type clearEmergencyRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// ClearBoardEmergency handles DELETE /api/boards/:id/emergency.
func (h *Handler) ClearBoardEmergency(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid board ID"})
		return
	}
	var req clearEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emergency.ClearBoardMode(c.Request.Context(), id, req.Actor); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "board not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.notify != nil {
		h.notify.Dispatch(notify.Event{BoardID: id, Message: "emergency cleared by " + req.Actor})
	}
	c.Status(http.StatusNoContent)
}
