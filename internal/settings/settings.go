// Package settings validates timer preferences and caches them on disk as YAML.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fomopomo/internal/model"
	"fomopomo/internal/timer"
)

const (
	MinMinutes  = 1
	MaxMinutes  = 600
	MinInterval = 1
	MaxInterval = 12
	MaxVolume   = 100
	MaxPresets  = 10
)

// ValidationError names the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate rejects settings outside the accepted ranges.
func Validate(s model.Settings) error {
	if err := checkMinutes("pomoTime", s.PomoTime); err != nil {
		return err
	}
	if err := checkMinutes("shortBreak", s.ShortBreak); err != nil {
		return err
	}
	if err := checkMinutes("longBreak", s.LongBreak); err != nil {
		return err
	}
	if s.LongBreakInterval < MinInterval || s.LongBreakInterval > MaxInterval {
		return &ValidationError{Field: "longBreakInterval", Message: fmt.Sprintf("must be between %d and %d", MinInterval, MaxInterval)}
	}
	if s.Volume < 0 || s.Volume > MaxVolume {
		return &ValidationError{Field: "volume", Message: fmt.Sprintf("must be between 0 and %d", MaxVolume)}
	}
	if len(s.Presets) > MaxPresets {
		return &ValidationError{Field: "presets", Message: fmt.Sprintf("at most %d presets", MaxPresets)}
	}
	for i, preset := range s.Presets {
		if strings.TrimSpace(preset.Label) == "" {
			return &ValidationError{Field: fmt.Sprintf("presets[%d].label", i), Message: "must not be empty"}
		}
		if preset.Minutes < MinMinutes || preset.Minutes > MaxMinutes {
			return &ValidationError{Field: fmt.Sprintf("presets[%d].minutes", i), Message: fmt.Sprintf("must be between %d and %d", MinMinutes, MaxMinutes)}
		}
	}
	return nil
}

func checkMinutes(field string, value int) error {
	if value < MinMinutes || value > MaxMinutes {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be between %d and %d minutes", MinMinutes, MaxMinutes)}
	}
	return nil
}

// Normalize clamps every field into range. Presets that cannot be repaired are dropped.
func Normalize(s model.Settings) model.Settings {
	s.PomoTime = clamp(s.PomoTime, MinMinutes, MaxMinutes)
	s.ShortBreak = clamp(s.ShortBreak, MinMinutes, MaxMinutes)
	s.LongBreak = clamp(s.LongBreak, MinMinutes, MaxMinutes)
	s.LongBreakInterval = clamp(s.LongBreakInterval, MinInterval, MaxInterval)
	s.Volume = clamp(s.Volume, 0, MaxVolume)

	presets := make([]model.Preset, 0, len(s.Presets))
	for _, preset := range s.Presets {
		preset.Label = strings.TrimSpace(preset.Label)
		if preset.Label == "" || preset.Minutes <= 0 {
			continue
		}
		preset.Minutes = clamp(preset.Minutes, MinMinutes, MaxMinutes)
		presets = append(presets, preset)
		if len(presets) == MaxPresets {
			break
		}
	}
	s.Presets = presets
	return s
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Durations converts minute-based settings into the engine snapshot.
func Durations(s model.Settings) timer.Durations {
	return timer.Durations{
		Focus:             time.Duration(s.PomoTime) * time.Minute,
		ShortBreak:        time.Duration(s.ShortBreak) * time.Minute,
		LongBreak:         time.Duration(s.LongBreak) * time.Minute,
		LongBreakInterval: s.LongBreakInterval,
	}
}

// Cached is the on-disk form: the settings plus the server version they came from.
type Cached struct {
	Settings model.Settings
	Version  int
}

type yamlPreset struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label"`
	Minutes int    `yaml:"minutes"`
}

type yamlSettings struct {
	Version           int          `yaml:"version"`
	PomoTime          int          `yaml:"pomo_time"`
	ShortBreak        int          `yaml:"short_break"`
	LongBreak         int          `yaml:"long_break"`
	LongBreakInterval int          `yaml:"long_break_interval"`
	AutoStartBreaks   bool         `yaml:"auto_start_breaks"`
	AutoStartPomos    bool         `yaml:"auto_start_pomos"`
	Volume            *int         `yaml:"volume"`
	IsMuted           bool         `yaml:"is_muted"`
	TaskPopupEnabled  *bool        `yaml:"task_popup_enabled"`
	Presets           []yamlPreset `yaml:"presets"`
}

// Load reads the YAML cache at path. A missing file yields the defaults at version 0.
func Load(path string) (Cached, error) {
	cached := Cached{Settings: model.DefaultSettings()}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cached, nil
		}
		return cached, fmt.Errorf("read settings file: %w", err)
	}

	var fileData yamlSettings
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return cached, fmt.Errorf("parse settings yaml: %w", err)
	}

	applyYaml(&cached, fileData)
	cached.Settings = Normalize(cached.Settings)
	return cached, nil
}

// Save writes cached to path, creating parent directories.
func Save(path string, cached Cached) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	s := cached.Settings
	volume := s.Volume
	taskPopup := s.TaskPopupEnabled
	fileData := yamlSettings{
		Version:           cached.Version,
		PomoTime:          s.PomoTime,
		ShortBreak:        s.ShortBreak,
		LongBreak:         s.LongBreak,
		LongBreakInterval: s.LongBreakInterval,
		AutoStartBreaks:   s.AutoStartBreaks,
		AutoStartPomos:    s.AutoStartPomos,
		Volume:            &volume,
		IsMuted:           s.IsMuted,
		TaskPopupEnabled:  &taskPopup,
	}
	for _, preset := range s.Presets {
		fileData.Presets = append(fileData.Presets, yamlPreset{ID: preset.ID, Label: preset.Label, Minutes: preset.Minutes})
	}

	serialized, err := yaml.Marshal(fileData)
	if err != nil {
		return fmt.Errorf("marshal settings yaml: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func applyYaml(cached *Cached, fileData yamlSettings) {
	s := &cached.Settings
	if fileData.Version > 0 {
		cached.Version = fileData.Version
	}
	if fileData.PomoTime > 0 {
		s.PomoTime = fileData.PomoTime
	}
	if fileData.ShortBreak > 0 {
		s.ShortBreak = fileData.ShortBreak
	}
	if fileData.LongBreak > 0 {
		s.LongBreak = fileData.LongBreak
	}
	if fileData.LongBreakInterval > 0 {
		s.LongBreakInterval = fileData.LongBreakInterval
	}
	if fileData.Volume != nil {
		s.Volume = *fileData.Volume
	}
	if fileData.TaskPopupEnabled != nil {
		s.TaskPopupEnabled = *fileData.TaskPopupEnabled
	}
	if fileData.Presets != nil {
		s.Presets = make([]model.Preset, 0, len(fileData.Presets))
		for _, preset := range fileData.Presets {
			s.Presets = append(s.Presets, model.Preset{ID: preset.ID, Label: preset.Label, Minutes: preset.Minutes})
		}
	}

	s.AutoStartBreaks = fileData.AutoStartBreaks
	s.AutoStartPomos = fileData.AutoStartPomos
	s.IsMuted = fileData.IsMuted
}

// Keys lists the names accepted by Set, in display order.
var Keys = []string{
	"pomo_time",
	"short_break",
	"long_break",
	"long_break_interval",
	"auto_start_breaks",
	"auto_start_pomos",
	"volume",
	"is_muted",
	"task_popup_enabled",
}

// Set assigns one field by its YAML key. Values are validated by Validate afterwards.
func Set(s *model.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "pomo_time", "short_break", "long_break", "long_break_interval", "volume":
		n, err := strconv.Atoi(value)
		if err != nil {
			return &ValidationError{Field: key, Message: "must be a whole number"}
		}
		switch key {
		case "pomo_time":
			s.PomoTime = n
		case "short_break":
			s.ShortBreak = n
		case "long_break":
			s.LongBreak = n
		case "long_break_interval":
			s.LongBreakInterval = n
		case "volume":
			s.Volume = n
		}
	case "auto_start_breaks", "auto_start_pomos", "is_muted", "task_popup_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &ValidationError{Field: key, Message: "must be true or false"}
		}
		switch key {
		case "auto_start_breaks":
			s.AutoStartBreaks = b
		case "auto_start_pomos":
			s.AutoStartPomos = b
		case "is_muted":
			s.IsMuted = b
		case "task_popup_enabled":
			s.TaskPopupEnabled = b
		}
	default:
		return &ValidationError{Field: key, Message: "unknown setting"}
	}
	return nil
}

// Get renders one field by its YAML key.
func Get(s model.Settings, key string) (string, bool) {
	switch key {
	case "pomo_time":
		return strconv.Itoa(s.PomoTime), true
	case "short_break":
		return strconv.Itoa(s.ShortBreak), true
	case "long_break":
		return strconv.Itoa(s.LongBreak), true
	case "long_break_interval":
		return strconv.Itoa(s.LongBreakInterval), true
	case "volume":
		return strconv.Itoa(s.Volume), true
	case "auto_start_breaks":
		return strconv.FormatBool(s.AutoStartBreaks), true
	case "auto_start_pomos":
		return strconv.FormatBool(s.AutoStartPomos), true
	case "is_muted":
		return strconv.FormatBool(s.IsMuted), true
	case "task_popup_enabled":
		return strconv.FormatBool(s.TaskPopupEnabled), true
	}
	return "", false
}
