package model

import "time"

type Preset struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Minutes int    `json:"minutes"`
}

// Settings holds timer preferences. Durations are in minutes.
type Settings struct {
	PomoTime          int      `json:"pomoTime"`
	ShortBreak        int      `json:"shortBreak"`
	LongBreak         int      `json:"longBreak"`
	AutoStartBreaks   bool     `json:"autoStartBreaks"`
	AutoStartPomos    bool     `json:"autoStartPomos"`
	LongBreakInterval int      `json:"longBreakInterval"`
	Volume            int      `json:"volume"`
	IsMuted           bool     `json:"isMuted"`
	TaskPopupEnabled  bool     `json:"taskPopupEnabled"`
	Presets           []Preset `json:"presets"`
}

type UserSettings struct {
	UserID    string    `json:"userId"`
	Settings  Settings  `json:"settings"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func DefaultSettings() Settings {
	return Settings{
		PomoTime:          25,
		ShortBreak:        5,
		LongBreak:         15,
		AutoStartBreaks:   false,
		AutoStartPomos:    false,
		LongBreakInterval: 4,
		Volume:            50,
		IsMuted:           false,
		TaskPopupEnabled:  true,
		Presets: []Preset{
			{ID: "1", Label: "Task 1", Minutes: 25},
			{ID: "2", Label: "Task 2", Minutes: 50},
			{ID: "3", Label: "Task 3", Minutes: 90},
		},
	}
}
