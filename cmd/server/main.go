package main

import (
	"log"

	"github.com/jonboulle/clockwork"

	"fomopomo/internal/config"
	"fomopomo/internal/db"
	"fomopomo/internal/handler"
	"fomopomo/internal/repository"
	"fomopomo/internal/router"
	"fomopomo/internal/service"
	"fomopomo/internal/studyday"
)

func main() {
	cfg := config.Load()

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	clock := clockwork.NewRealClock()
	calendar := studyday.New(cfg.DayResetHour, cfg.Location())

	userRepo := repository.NewUserRepository(database)
	presenceRepo := repository.NewPresenceRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	settingsRepo := repository.NewSettingsRepository(database)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	presenceService := service.NewPresenceService(presenceRepo, cfg.PresenceTTL, clock)
	sessionService := service.NewSessionService(sessionRepo, presenceService, calendar, clock)
	settingsService := service.NewSettingsService(settingsRepo, clock)

	engine := router.New(authService, router.Handlers{
		Auth:     handler.NewAuthHandler(authService),
		Presence: handler.NewPresenceHandler(presenceService),
		Sessions: handler.NewSessionHandler(sessionService),
		Settings: handler.NewSettingsHandler(settingsService),
	}, cfg.CORSOrigins)

	log.Printf("study day resets at %02d:00 %s", calendar.ResetHour, calendar.Location)
	log.Printf("server listening on :%s", cfg.Port)
	if err := engine.Run(":" + cfg.Port); err != nil {
		log.Fatalf("run server: %v", err)
	}
}
