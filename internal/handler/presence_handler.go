package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fomopomo/internal/middleware"
	"fomopomo/internal/service"
)

type PresenceHandler struct {
	presenceService *service.PresenceService
}

type updatePresenceRequest struct {
	Status    string     `json:"status"`
	Task      *string    `json:"task"`
	StartedAt *time.Time `json:"startedAt"`
}

func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

func (h *PresenceHandler) Update(c *gin.Context) {
	var req updatePresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	view, apiErr := h.presenceService.Update(c.Request.Context(), middleware.UserID(c), service.UpdatePresenceInput{
		Status:    req.Status,
		Task:      req.Task,
		StartedAt: req.StartedAt,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": view})
}

func (h *PresenceHandler) List(c *gin.Context) {
	views, apiErr := h.presenceService.List(c.Request.Context())
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": views})
}

func (h *PresenceHandler) Get(c *gin.Context) {
	view, apiErr := h.presenceService.Get(c.Request.Context(), c.Param("userId"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": view})
}
