package tracker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"fomopomo/internal/model"
	"fomopomo/internal/timer"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type memoryRecorder struct {
	mu       sync.Mutex
	sessions []model.StudySession
	err      error
}

func (r *memoryRecorder) Record(session model.StudySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sessions = append(r.sessions, session)
	return nil
}

func (r *memoryRecorder) all() []model.StudySession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StudySession(nil), r.sessions...)
}

type recordingSink struct {
	mu      sync.Mutex
	updates []timer.StatusUpdate
}

func (s *recordingSink) UpdateStatus(update timer.StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

func (s *recordingSink) last() timer.StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return timer.StatusUpdate{}
	}
	return s.updates[len(s.updates)-1]
}

type levelPlayer struct {
	mu       sync.Mutex
	alarms   int
	volume   int
	muted    bool
	alarmErr error
}

func (p *levelPlayer) PlayClick() error { return nil }

func (p *levelPlayer) PlayAlarm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alarms++
	return p.alarmErr
}

func (p *levelPlayer) SetLevel(volume int, muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	p.muted = muted
}

type fixture struct {
	tracker  *Tracker
	clock    fakeClock
	recorder *memoryRecorder
	sink     *recordingSink
	player   *levelPlayer
}

func newFixture(t *testing.T, s model.Settings) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clockwork.NewFakeClockAt(time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC)),
		recorder: &memoryRecorder{},
		sink:     &recordingSink{},
		player:   &levelPlayer{},
	}
	f.tracker = New(Config{
		Settings:     s,
		Clock:        f.clock,
		TickInterval: 24 * time.Hour,
		Presence:     f.sink,
		Player:       f.player,
		Recorder:     f.recorder,
	})
	t.Cleanup(f.tracker.Close)
	return f
}

// expire runs the countdown past its deadline. Pausing an overdue run
// completes it on the calling goroutine.
func (f *fixture) expire() {
	state := f.tracker.Engine().State()
	f.clock.Advance(time.Duration(state.TimeLeft+1) * time.Second)
	f.tracker.Engine().Pause()
}

func shortSettings() model.Settings {
	s := model.DefaultSettings()
	s.PomoTime = 1
	s.ShortBreak = 1
	s.LongBreak = 2
	return s
}

func TestFocusCompletionRecordsSessionAndMovesToBreak(t *testing.T) {
	f := newFixture(t, shortSettings())
	f.tracker.SetTask("  essay ")

	f.tracker.Engine().Start()
	f.expire()

	sessions := f.recorder.all()
	if len(sessions) != 1 {
		t.Fatalf("expected one recorded session, got %d", len(sessions))
	}
	got := sessions[0]
	if got.Mode != model.ModeFocus || got.DurationSeconds != 60 {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.Task == nil || *got.Task != "essay" || got.ID == "" {
		t.Fatalf("expected trimmed task and id, got %+v", got)
	}

	state := f.tracker.Engine().State()
	if state.Mode != timer.ModeShortBreak || state.Running {
		t.Fatalf("expected idle short break, got %+v", state)
	}
	if f.player.alarms != 1 {
		t.Fatalf("expected one alarm, got %d", f.player.alarms)
	}
	if f.sink.last().Status != timer.StatusIdle {
		t.Fatalf("expected idle presence, got %s", f.sink.last().Status)
	}

	select {
	case completion := <-f.tracker.Completions():
		if completion.Mode != timer.ModeFocus || completion.Next != timer.ModeShortBreak || completion.RecordedSeconds != 60 {
			t.Fatalf("unexpected completion %+v", completion)
		}
		if completion.AutoStarted {
			t.Fatal("break should not auto-start")
		}
	default:
		t.Fatal("expected a completion event")
	}
}

func TestAutoStartBreakReportsStudying(t *testing.T) {
	s := shortSettings()
	s.AutoStartBreaks = true
	f := newFixture(t, s)

	f.tracker.Engine().Start()
	f.expire()

	state := f.tracker.Engine().State()
	if state.Mode != timer.ModeShortBreak || !state.Running {
		t.Fatalf("expected running short break, got %+v", state)
	}
	if f.sink.last().Status != timer.StatusStudying {
		t.Fatalf("expected studying as the last presence, got %s", f.sink.last().Status)
	}
}

func TestPresetAfterMissedDeadlineStopsAutoStartedBreak(t *testing.T) {
	s := shortSettings()
	s.AutoStartBreaks = true
	f := newFixture(t, s)

	f.tracker.Engine().Start()
	f.clock.Advance(61 * time.Second)
	preset, ok := f.tracker.NextPreset()
	if !ok {
		t.Fatal("expected a preset")
	}

	if len(f.recorder.all()) != 1 {
		t.Fatalf("expected the overdue focus block recorded, got %d", len(f.recorder.all()))
	}
	state := f.tracker.Engine().State()
	if state.Mode != timer.ModeShortBreak {
		t.Fatalf("expected short break after completion, got %s", state.Mode)
	}
	if state.Running {
		t.Fatal("preset must leave the auto-started break paused")
	}
	if state.TimeLeft != preset.Minutes*60 {
		t.Fatalf("expected %d seconds, got %d", preset.Minutes*60, state.TimeLeft)
	}
	if f.sink.last().Status != timer.StatusPaused {
		t.Fatalf("expected paused presence last, got %s", f.sink.last().Status)
	}
}

func TestBreakCompletionAutoStartsFocusOnlyWhenEnabled(t *testing.T) {
	s := shortSettings()
	s.AutoStartPomos = true
	f := newFixture(t, s)

	f.tracker.Engine().ChangeMode(timer.ModeShortBreak)
	f.tracker.Engine().Start()
	f.expire()

	if len(f.recorder.all()) != 0 {
		t.Fatal("breaks must not be recorded")
	}
	state := f.tracker.Engine().State()
	if state.Mode != timer.ModeFocus || !state.Running {
		t.Fatalf("expected running focus, got %+v", state)
	}
}

func TestSaveFocusRecordsPartialBlock(t *testing.T) {
	f := newFixture(t, model.DefaultSettings())

	f.tracker.Engine().Start()
	f.clock.Advance(90 * time.Second)
	f.tracker.Engine().Pause()

	if saved := f.tracker.SaveFocus(); saved != 90 {
		t.Fatalf("expected 90 seconds saved, got %d", saved)
	}
	if saved := f.tracker.SaveFocus(); saved != 0 {
		t.Fatalf("expected nothing left to save, got %d", saved)
	}
	if len(f.recorder.all()) != 1 {
		t.Fatalf("expected one session, got %d", len(f.recorder.all()))
	}
}

func TestSaveStopwatchRecordsAndResets(t *testing.T) {
	f := newFixture(t, model.DefaultSettings())

	if saved := f.tracker.SaveStopwatch(); saved != 0 {
		t.Fatalf("empty stopwatch should record nothing, got %d", saved)
	}

	f.tracker.Stopwatch().Start()
	f.clock.Advance(2*time.Minute + 400*time.Millisecond)
	if saved := f.tracker.SaveStopwatch(); saved != 120 {
		t.Fatalf("expected 120 seconds, got %d", saved)
	}
	if f.tracker.Stopwatch().Elapsed() != 0 || f.tracker.Stopwatch().Running() {
		t.Fatal("stopwatch should be reset after saving")
	}
	sessions := f.recorder.all()
	if len(sessions) != 1 || sessions[0].Mode != model.ModeStopwatch {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestRecorderAndAlarmErrorsAreSwallowed(t *testing.T) {
	f := newFixture(t, shortSettings())
	f.recorder.err = errors.New("disk full")
	f.player.alarmErr = errors.New("no terminal")

	f.tracker.Engine().Start()
	f.expire()

	if state := f.tracker.Engine().State(); state.Mode != timer.ModeShortBreak {
		t.Fatalf("completion should still advance, got %s", state.Mode)
	}
}

func TestApplySettingsUpdatesDurationsAndLevel(t *testing.T) {
	f := newFixture(t, model.DefaultSettings())
	if f.player.volume != 50 {
		t.Fatalf("expected initial volume 50, got %d", f.player.volume)
	}

	next := model.DefaultSettings()
	next.PomoTime = 40
	next.Volume = 10
	next.IsMuted = true
	f.tracker.ApplySettings(next)

	if left := f.tracker.Engine().State().TimeLeft; left != 40*60 {
		t.Fatalf("expected idle timer to follow new focus length, got %d", left)
	}
	if f.player.volume != 10 || !f.player.muted {
		t.Fatalf("expected level 10 muted, got %d %v", f.player.volume, f.player.muted)
	}
	if f.tracker.Settings().PomoTime != 40 {
		t.Fatal("settings snapshot not updated")
	}
}

func TestNextPresetCycles(t *testing.T) {
	f := newFixture(t, model.DefaultSettings())

	want := []int{25, 50, 90, 25}
	for i, minutes := range want {
		preset, ok := f.tracker.NextPreset()
		if !ok {
			t.Fatalf("step %d: expected a preset", i)
		}
		if preset.Minutes != minutes {
			t.Fatalf("step %d: expected %d minutes, got %d", i, minutes, preset.Minutes)
		}
		if left := f.tracker.Engine().State().TimeLeft; left != minutes*60 {
			t.Fatalf("step %d: expected %d seconds, got %d", i, minutes*60, left)
		}
	}

	empty := model.DefaultSettings()
	empty.Presets = nil
	f.tracker.ApplySettings(empty)
	if _, ok := f.tracker.NextPreset(); ok {
		t.Fatal("expected no preset without presets")
	}
}
