package timer

import "time"

// Mode selects which configured duration applies to the countdown.
type Mode string

const (
	ModeFocus      Mode = "focus"
	ModeShortBreak Mode = "shortBreak"
	ModeLongBreak  Mode = "longBreak"

	// ModeStopwatch labels stopwatch sessions. The countdown never runs in it.
	ModeStopwatch Mode = "stopwatch"
)

// Valid reports whether m is one of the countdown modes.
func (m Mode) Valid() bool {
	return m == ModeFocus || m == ModeShortBreak || m == ModeLongBreak
}

// Status is the presence label reported while the clock runs or stops.
type Status string

const (
	StatusStudying Status = "studying"
	StatusPaused   Status = "paused"
	StatusIdle     Status = "idle"
)

const (
	DefaultTickInterval = 200 * time.Millisecond
	minDuration         = time.Second
)

// Durations is the settings snapshot consumed by the engine.
type Durations struct {
	Focus             time.Duration
	ShortBreak        time.Duration
	LongBreak         time.Duration
	LongBreakInterval int
}

// DefaultDurations mirrors the default user settings (25/5/15, every 4th break is long).
func DefaultDurations() Durations {
	return Durations{
		Focus:             25 * time.Minute,
		ShortBreak:        5 * time.Minute,
		LongBreak:         15 * time.Minute,
		LongBreakInterval: 4,
	}
}

func (d Durations) normalized() Durations {
	d.Focus = clampDuration(d.Focus)
	d.ShortBreak = clampDuration(d.ShortBreak)
	d.LongBreak = clampDuration(d.LongBreak)
	if d.LongBreakInterval < 1 {
		d.LongBreakInterval = 1
	}
	return d
}

// For returns the full duration of mode m. Unknown modes fall back to focus.
func (d Durations) For(m Mode) time.Duration {
	switch m {
	case ModeShortBreak:
		return d.ShortBreak
	case ModeLongBreak:
		return d.LongBreak
	default:
		return d.Focus
	}
}

func clampDuration(d time.Duration) time.Duration {
	if d < minDuration {
		return minDuration
	}
	return d
}

// State is a read-only snapshot of the engine.
type State struct {
	Mode               Mode
	TimeLeft           int
	Running            bool
	TargetEnd          time.Time
	CycleCount         int
	FocusLoggedSeconds int
	Task               string
}

// StatusUpdate is pushed to the presence sink on start, pause and stop.
type StatusUpdate struct {
	Status    Status
	Task      string
	StartedAt *time.Time
	At        time.Time
}

// PresenceSink receives status transitions. Implementations must not block.
type PresenceSink interface {
	UpdateStatus(update StatusUpdate)
}

// Player plays short feedback sounds. Errors are logged and never surface.
type Player interface {
	PlayClick() error
	PlayAlarm() error
}
