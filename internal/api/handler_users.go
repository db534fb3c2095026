package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"door-access-backend/internal/model"
	"door-access-backend/internal/store"
)

type createUserRequest struct {
	Name       string     `json:"name" binding:"required"`
	Active     *bool      `json:"active"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
	Notes      string     `json:"notes"`
}

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := model.User{
		Name:       req.Name,
		Active:     active,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
	}
	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

type createCredentialRequest struct {
	Type  string `json:"type" binding:"required,oneof=card pin"`
	Value string `json:"value" binding:"required"`
}

// CreateCredential handles POST /api/users/:id/credentials. A PIN that
// collides with another user's PIN or a temp code is rejected with 409
// before anything is written.
func (h *Handler) CreateCredential(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var req createCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cred := model.Credential{
		UserID: userID,
		Type:   model.CredentialType(req.Type),
		Value:  req.Value,
		Active: true,
	}
	if err := h.store.CreateCredential(c.Request.Context(), &cred); err != nil {
		if errors.Is(err, store.ErrDuplicateCredential) {
			c.JSON(http.StatusConflict, gin.H{"error": "credential value is already in use"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": cred.ID})
}
