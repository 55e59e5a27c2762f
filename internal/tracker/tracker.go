// Package tracker connects the countdown engine and the stopwatch to the
// rest of the client: alarms, presence, session recording and settings.
package tracker

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"fomopomo/internal/model"
	"fomopomo/internal/settings"
	"fomopomo/internal/timer"
)

// Recorder persists finished sessions. Implementations must return quickly.
type Recorder interface {
	Record(session model.StudySession) error
}

// LevelSetter is implemented by players with adjustable volume.
type LevelSetter interface {
	SetLevel(volume int, muted bool)
}

// Completion describes one expired countdown.
type Completion struct {
	Mode            timer.Mode
	Next            timer.Mode
	RecordedSeconds int
	AutoStarted     bool
	At              time.Time
}

type Config struct {
	Settings     model.Settings
	Clock        clockwork.Clock
	TickInterval time.Duration
	Presence     timer.PresenceSink
	Player       timer.Player
	Recorder     Recorder
	Logger       *log.Logger
}

type Tracker struct {
	engine    *timer.Engine
	stopwatch *timer.Stopwatch
	clock     clockwork.Clock
	player    timer.Player
	recorder  Recorder
	logger    *log.Logger

	mu          sync.Mutex
	settings    model.Settings
	presetIndex int
	completions chan Completion
}

func New(cfg Config) *Tracker {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	t := &Tracker{
		clock:       cfg.Clock,
		player:      cfg.Player,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger,
		settings:    settings.Normalize(cfg.Settings),
		presetIndex: -1,
		completions: make(chan Completion, 8),
	}
	t.engine = timer.New(settings.Durations(t.settings), timer.Options{
		Clock:        cfg.Clock,
		TickInterval: cfg.TickInterval,
		Presence:     cfg.Presence,
		Player:       cfg.Player,
		OnComplete:   t.handleComplete,
		Logger:       cfg.Logger,
	})
	t.stopwatch = timer.NewStopwatch(cfg.Clock, cfg.Presence)
	t.applyLevel(t.settings)
	return t
}

func (t *Tracker) Engine() *timer.Engine {
	return t.engine
}

func (t *Tracker) Stopwatch() *timer.Stopwatch {
	return t.stopwatch
}

// Completions delivers expired countdowns. Unread completions are dropped.
func (t *Tracker) Completions() <-chan Completion {
	return t.completions
}

func (t *Tracker) Settings() model.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// ApplySettings pushes new durations into the engine and the volume into the player.
func (t *Tracker) ApplySettings(s model.Settings) {
	s = settings.Normalize(s)
	t.mu.Lock()
	t.settings = s
	if t.presetIndex >= len(s.Presets) {
		t.presetIndex = -1
	}
	t.mu.Unlock()

	t.engine.UpdateDurations(settings.Durations(s))
	t.applyLevel(s)
}

// NextPreset loads the next preset into the countdown.
func (t *Tracker) NextPreset() (model.Preset, bool) {
	t.mu.Lock()
	if len(t.settings.Presets) == 0 {
		t.mu.Unlock()
		return model.Preset{}, false
	}
	t.presetIndex = (t.presetIndex + 1) % len(t.settings.Presets)
	preset := t.settings.Presets[t.presetIndex]
	t.mu.Unlock()

	t.engine.ApplyPreset(time.Duration(preset.Minutes) * time.Minute)
	return preset, true
}

func (t *Tracker) SetTask(task string) {
	task = strings.TrimSpace(task)
	t.engine.SetTask(task)
	t.stopwatch.SetTask(task)
}

// SaveFocus records the focus time logged so far and returns its seconds.
func (t *Tracker) SaveFocus() int {
	logged := t.engine.TakeFocusLog()
	if logged <= 0 {
		return 0
	}
	t.record(timer.ModeFocus, logged, t.engine.State().Task)
	return logged
}

// SaveStopwatch records and resets the stopwatch. Runs shorter than a
// second are discarded.
func (t *Tracker) SaveStopwatch() int {
	elapsed := int(t.stopwatch.Reset() / time.Second)
	if elapsed <= 0 {
		return 0
	}
	t.record(timer.ModeStopwatch, elapsed, t.engine.State().Task)
	return elapsed
}

// Close stops the countdown and pauses the stopwatch.
func (t *Tracker) Close() {
	t.stopwatch.Pause()
	t.engine.Close()
}

func (t *Tracker) handleComplete() {
	if t.player != nil {
		if err := t.player.PlayAlarm(); err != nil {
			t.logger.Printf("tracker: play alarm: %v", err)
		}
	}

	state := t.engine.State()
	completion := Completion{Mode: state.Mode, At: t.clock.Now()}
	if state.Mode == timer.ModeFocus {
		if logged := t.engine.TakeFocusLog(); logged > 0 {
			t.record(timer.ModeFocus, logged, state.Task)
			completion.RecordedSeconds = logged
		}
	}

	completion.Next = t.engine.Advance()

	current := t.Settings()
	autoStart := current.AutoStartPomos
	if completion.Next != timer.ModeFocus {
		autoStart = current.AutoStartBreaks
	}
	if autoStart {
		t.engine.Start()
		completion.AutoStarted = true
	}

	select {
	case t.completions <- completion:
	default:
	}
}

func (t *Tracker) record(mode timer.Mode, seconds int, task string) {
	if t.recorder == nil {
		return
	}
	if seconds > model.MaxSessionSeconds {
		seconds = model.MaxSessionSeconds
	}
	session := model.StudySession{
		ID:              uuid.NewString(),
		Mode:            string(mode),
		DurationSeconds: seconds,
		CreatedAt:       t.clock.Now().UTC(),
	}
	if task != "" {
		session.Task = &task
	}
	if err := t.recorder.Record(session); err != nil {
		t.logger.Printf("tracker: record %s session: %v", mode, err)
	}
}

func (t *Tracker) applyLevel(s model.Settings) {
	if setter, ok := t.player.(LevelSetter); ok {
		setter.SetLevel(s.Volume, s.IsMuted)
	}
}
