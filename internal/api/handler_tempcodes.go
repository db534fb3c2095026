package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
	"door-access-backend/internal/tempcode"
)

// tempCodeResponse is the listing shape including the projected status, so
// the UI can never show "active" for a code the engine would deny.
type tempCodeResponse struct {
	ID          int64      `json:"id"`
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	UsageType   string     `json:"usage_type"`
	UsageMode   string     `json:"usage_mode"`
	MaxUses     int        `json:"max_uses"`
	CurrentUses int        `json:"current_uses"`
	TimeType    string     `json:"time_type"`
	ValidHours  int        `json:"valid_hours,omitempty"`
	ValidFrom   *time.Time `json:"valid_from,omitempty"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// GetTempCodes handles GET /api/temp_codes.
func (h *Handler) GetTempCodes(c *gin.Context) {
	codes, err := h.store.TempCodes(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve temp codes"})
		return
	}

	now := h.clock.Now()
	responses := make([]tempCodeResponse, 0, len(codes))
	for i := range codes {
		code := &codes[i]
		resp := tempCodeResponse{
			ID:          code.ID,
			Code:        code.Code,
			Name:        code.Name,
			Status:      string(tempcode.ProjectStatus(code, now)),
			UsageType:   string(code.UsageType),
			UsageMode:   string(code.UsageMode),
			MaxUses:     code.MaxUses,
			CurrentUses: code.CurrentUses,
			TimeType:    string(code.TimeType),
			ValidHours:  code.ValidHours,
			ValidFrom:   code.ValidFrom,
			ValidUntil:  code.ValidUntil,
			LastUsedAt:  code.LastUsedAt,
		}
		if code.TimeType == model.TimeTypeHours {
			exp := code.ExpiresAt()
			resp.ExpiresAt = &exp
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}

type createTempCodeRequest struct {
	Code       string     `json:"code" binding:"required"`
	Name       string     `json:"name" binding:"required"`
	UsageType  string     `json:"usage_type" binding:"required,oneof=one_time limited unlimited"`
	UsageMode  string     `json:"usage_mode" binding:"required,oneof=per_door total"`
	MaxUses    int        `json:"max_uses"`
	TimeType   string     `json:"time_type" binding:"required,oneof=hours date_range permanent"`
	ValidHours int        `json:"valid_hours"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	DoorIDs    []int64    `json:"door_ids"`
	GroupIDs   []int64    `json:"group_ids"`
}

// CreateTempCode handles POST /api/temp_codes. A code targets doors or
// groups, never both; a code value colliding with a user PIN or another temp
// code is rejected with 409.
func (h *Handler) CreateTempCode(c *gin.Context) {
	var req createTempCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.DoorIDs) > 0 && len(req.GroupIDs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a temp code targets doors or groups, not both"})
		return
	}
	if len(req.DoorIDs) == 0 && len(req.GroupIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a temp code must target at least one door or group"})
		return
	}

	now := h.clock.Now()
	code := model.TempCode{
		Code:            req.Code,
		Name:            req.Name,
		Active:          true,
		UsageType:       model.TempCodeUsageType(req.UsageType),
		UsageMode:       model.TempCodeUsageMode(req.UsageMode),
		MaxUses:         req.MaxUses,
		TimeType:        model.TempCodeTimeType(req.TimeType),
		ValidHours:      req.ValidHours,
		ValidFrom:       req.ValidFrom,
		ValidUntil:      req.ValidUntil,
		LastActivatedAt: &now,
	}
	for _, id := range req.DoorIDs {
		code.Doors = append(code.Doors, &model.Door{ID: id})
	}
	for _, id := range req.GroupIDs {
		code.Groups = append(code.Groups, &model.AccessGroup{ID: id})
	}

	if err := h.store.CreateTempCode(c.Request.Context(), &code); err != nil {
		if errors.Is(err, store.ErrDuplicateCredential) {
			c.JSON(http.StatusConflict, gin.H{"error": "code value is already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": code.ID})
}

// ActivateTempCode handles POST /api/temp_codes/:id/activate. Reactivation
// resets the usage counters and restarts the hours countdown; a lapsed
// date_range code is rejected with an explicit expired flag so the caller
// can prompt for a new date.
func (h *Handler) ActivateTempCode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid temp code ID"})
		return
	}
	if err := h.tempCodes.Activate(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, tempcode.ErrDateRangeLapsed):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "expired": true})
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "temp code not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// DeactivateTempCode handles POST /api/temp_codes/:id/deactivate.
func (h *Handler) DeactivateTempCode(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid temp code ID"})
		return
	}
	if err := h.tempCodes.Deactivate(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "temp code not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
