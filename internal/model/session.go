package model

import "time"

const (
	ModeFocus      = "focus"
	ModeShortBreak = "shortBreak"
	ModeLongBreak  = "longBreak"
	ModeStopwatch  = "stopwatch"
)

// MaxSessionSeconds caps a single study session record.
const MaxSessionSeconds = 24 * 60 * 60

type StudySession struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Mode            string    `json:"mode"`
	DurationSeconds int       `json:"durationSeconds"`
	Task            *string   `json:"task,omitempty"`
	GroupID         *string   `json:"groupId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// DailyStats summarizes one study day of a user.
type DailyStats struct {
	Date             string `json:"date"`
	FocusSeconds     int    `json:"focusSeconds"`
	StopwatchSeconds int    `json:"stopwatchSeconds"`
	TotalSeconds     int    `json:"totalSeconds"`
	Sessions         int    `json:"sessions"`
}

type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	UserID       string `json:"userId"`
	Nickname     string `json:"nickname"`
	TotalSeconds int    `json:"totalSeconds"`
	Status       string `json:"status"`
}

type Leaderboard struct {
	Date    string             `json:"date"`
	Entries []LeaderboardEntry `json:"entries"`
}

func IsValidSessionMode(mode string) bool {
	switch mode {
	case ModeFocus, ModeShortBreak, ModeLongBreak, ModeStopwatch:
		return true
	}
	return false
}

// IsStudyMode reports whether time in mode counts toward study totals.
func IsStudyMode(mode string) bool {
	return mode == ModeFocus || mode == ModeStopwatch
}
