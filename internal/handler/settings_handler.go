package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fomopomo/internal/middleware"
	"fomopomo/internal/model"
	"fomopomo/internal/service"
)

type SettingsHandler struct {
	settingsService *service.SettingsService
}

type updateSettingsRequest struct {
	BaseVersion int             `json:"baseVersion"`
	Settings    *model.Settings `json:"settings"`
}

func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	settings, apiErr := h.settingsService.Get(c.Request.Context(), middleware.UserID(c))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Settings == nil {
		writeInvalidJSON(c)
		return
	}
	if req.BaseVersion < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_base_version", "message": "baseVersion must not be negative"},
		})
		return
	}

	settings, apiErr := h.settingsService.Update(c.Request.Context(), middleware.UserID(c), service.UpdateSettingsInput{
		BaseVersion: req.BaseVersion,
		Settings:    *req.Settings,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
