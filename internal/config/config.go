package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string
	StudyDayTZ    string
	DayResetHour  int
	PresenceTTL   time.Duration
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/fomopomo.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		StudyDayTZ:    getEnv("STUDY_DAY_TZ", "Local"),
		DayResetHour:  getEnvInt("DAY_RESET_HOUR", 5),
		PresenceTTL:   time.Duration(getEnvInt("PRESENCE_TTL_MINUTES", 10)) * time.Minute,
	}
}

// Location resolves StudyDayTZ, falling back to the local zone.
func (c Config) Location() *time.Location {
	if c.StudyDayTZ == "" || c.StudyDayTZ == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.StudyDayTZ)
	if err != nil {
		log.Printf("unknown STUDY_DAY_TZ %q, using local time: %v", c.StudyDayTZ, err)
		return time.Local
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
