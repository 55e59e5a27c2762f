package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fomopomo/internal/handler"
	"fomopomo/internal/middleware"
	"fomopomo/internal/service"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Presence *handler.PresenceHandler
	Sessions *handler.SessionHandler
	Settings *handler.SettingsHandler
}

func New(authService *service.AuthService, handlers Handlers, corsOrigins []string) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.Auth(authService))
	protected.GET("/me", handlers.Auth.Me)

	protected.PUT("/presence", handlers.Presence.Update)
	protected.GET("/presence", handlers.Presence.List)
	protected.GET("/presence/:userId", handlers.Presence.Get)

	protected.POST("/sessions", handlers.Sessions.Create)
	protected.GET("/sessions", handlers.Sessions.List)
	protected.GET("/stats/daily", handlers.Sessions.DailyStats)
	protected.GET("/leaderboard", handlers.Sessions.Leaderboard)

	protected.GET("/settings", handlers.Settings.Get)
	protected.PUT("/settings", handlers.Settings.Update)

	return engine
}
