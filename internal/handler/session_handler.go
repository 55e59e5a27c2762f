package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fomopomo/internal/middleware"
	"fomopomo/internal/service"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

type createSessionRequest struct {
	ID              string     `json:"id"`
	Mode            string     `json:"mode"`
	DurationSeconds int        `json:"durationSeconds"`
	Task            *string    `json:"task"`
	GroupID         *string    `json:"groupId"`
	CreatedAt       *time.Time `json:"createdAt"`
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeInvalidJSON(c)
		return
	}

	session, created, apiErr := h.sessionService.Create(c.Request.Context(), middleware.UserID(c), service.CreateSessionInput{
		ID:              req.ID,
		Mode:            req.Mode,
		DurationSeconds: req.DurationSeconds,
		Task:            req.Task,
		GroupID:         req.GroupID,
		CreatedAt:       req.CreatedAt,
	})
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"session": session})
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, apiErr := h.sessionService.List(
		c.Request.Context(),
		middleware.UserID(c),
		queryInt(c, "limit", 50),
		c.Query("date"),
	)
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) DailyStats(c *gin.Context) {
	stats, apiErr := h.sessionService.DailyStats(c.Request.Context(), middleware.UserID(c), c.Query("date"))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *SessionHandler) Leaderboard(c *gin.Context) {
	board, apiErr := h.sessionService.Leaderboard(c.Request.Context(), c.Query("date"), queryInt(c, "limit", 20))
	if apiErr != nil {
		writeError(c, apiErr)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}
