package model

import "time"

const (
	StatusStudying = "studying"
	StatusPaused   = "paused"
	StatusIdle     = "idle"
	StatusOffline  = "offline"
)

// Profile is the presence row other users see on their dashboards.
type Profile struct {
	UserID          string     `json:"userId"`
	Nickname        string     `json:"nickname"`
	Status          string     `json:"status"`
	CurrentTask     *string    `json:"currentTask,omitempty"`
	StatusStartedAt *time.Time `json:"statusStartedAt,omitempty"`
	LastActiveAt    time.Time  `json:"lastActiveAt"`
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusStudying, StatusPaused, StatusIdle, StatusOffline:
		return true
	}
	return false
}
