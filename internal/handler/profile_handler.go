package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/todo-session/internal/domain"
	"github.com/prperemyshlev/todo-session/internal/dto"
	"github.com/prperemyshlev/todo-session/internal/service"
	"go.uber.org/zap"
)

// ProfileHandler serves the per-user profile documents
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *zap.Logger
}

func NewProfileHandler(profiles service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

// Put replaces the whole document. A missing createdAt means now.
func (h *ProfileHandler) Put(c *gin.Context) {
	var req dto.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile := &domain.Profile{
		ID:          c.Param("id"),
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}
	if req.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
		if err != nil {
			respondBindError(c, err)
			return
		}
		profile.CreatedAt = createdAt.UTC()
	}

	stored, err := h.profiles.Put(c.Request.Context(), currentUserID(c), profile)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(stored))
}

func (h *ProfileHandler) Patch(c *gin.Context) {
	var req dto.ProfilePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.profiles.UpdateDisplayName(c.Request.Context(), currentUserID(c), c.Param("id"), req.DisplayName)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

func profileResponse(p *domain.Profile) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
