package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

// doorResponse is the flattened structure for door status display.
type doorResponse struct {
	ID           int64  `json:"id"`
	BoardID      int64  `json:"board_id"`
	DoorNumber   int    `json:"door_number"`
	Name         string `json:"name"`
	Override     string `json:"override"`
	Mode         string `json:"mode"`
	ScheduleName string `json:"schedule_name,omitempty"`
}

// GetDoors handles GET /api/doors, answering "what state is each door in
// right now" for the status display.
func (h *Handler) GetDoors(c *gin.Context) {
	var doors []model.Door
	if err := h.store.DB().WithContext(c.Request.Context()).Order("board_id ASC, door_number ASC").Find(&doors).Error; err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve doors"})
		return
	}

	responses := make([]doorResponse, 0, len(doors))
	for i := range doors {
		door := &doors[i]
		res, err := h.resolver.ResolveDoorMode(c.Request.Context(), door.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		responses = append(responses, doorResponse{
			ID:           door.ID,
			BoardID:      door.BoardID,
			DoorNumber:   door.DoorNumber,
			Name:         door.Name,
			Override:     string(door.Override),
			Mode:         string(res.Mode),
			ScheduleName: res.ScheduleName,
		})
	}
	c.JSON(http.StatusOK, responses)
}

// GetDoorMode handles GET /api/doors/:id/mode, answering "why is this door
// currently unlocked".
func (h *Handler) GetDoorMode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid door ID"})
		return
	}
	if _, err := h.store.DoorByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "door not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	res, err := h.resolver.ResolveDoorMode(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": res.Mode, "schedule_name": res.ScheduleName})
}

type setOverrideRequest struct {
	Mode  string `json:"mode" binding:"required,oneof=lock unlock"`
	Actor string `json:"actor" binding:"required"`
}

// SetDoorOverride handles POST /api/doors/:id/override.
func (h *Handler) SetDoorOverride(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid door ID"})
		return
	}
	var req setOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emergency.SetDoorOverride(c.Request.Context(), id, model.EmergencyMode(req.Mode), req.Actor); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "door not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearDoorOverride handles DELETE /api/doors/:id/override.
func (h *Handler) ClearDoorOverride(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid door ID"})
		return
	}
	var req clearEmergencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.emergency.ClearDoorOverride(c.Request.Context(), id, req.Actor); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "door not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
