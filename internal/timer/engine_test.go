package timer

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

type recordingSink struct {
	mu      sync.Mutex
	updates []StatusUpdate
}

func (s *recordingSink) UpdateStatus(update StatusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
}

func (s *recordingSink) all() []StatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StatusUpdate(nil), s.updates...)
}

func (s *recordingSink) last(t *testing.T) StatusUpdate {
	t.Helper()
	updates := s.all()
	if len(updates) == 0 {
		t.Fatal("expected at least one presence update")
	}
	return updates[len(updates)-1]
}

type countingPlayer struct {
	clicks atomic.Int32
	err    error
}

func (p *countingPlayer) PlayClick() error {
	p.clicks.Add(1)
	return p.err
}

func (p *countingPlayer) PlayAlarm() error { return p.err }

type harness struct {
	engine    *Engine
	clock     fakeClock
	sink      *recordingSink
	player    *countingPlayer
	completed *atomic.Int32
}

// newHarness builds an engine whose ticker never fires on its own, so tests
// drive ticks explicitly with forceTick.
func newHarness(t *testing.T, durations Durations) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC))
	h := &harness{
		clock:     clock,
		sink:      &recordingSink{},
		player:    &countingPlayer{},
		completed: &atomic.Int32{},
	}
	h.engine = New(durations, Options{
		Clock:        clock,
		TickInterval: 24 * time.Hour,
		Presence:     h.sink,
		Player:       h.player,
		OnComplete:   func() { h.completed.Add(1) },
	})
	t.Cleanup(h.engine.Close)
	return h
}

func forceTick(e *Engine) {
	e.mu.Lock()
	handle := e.run
	e.mu.Unlock()
	if handle != nil {
		e.tick(handle)
	}
}

func pomodoroDurations(focus, shortBreak, longBreak time.Duration) Durations {
	return Durations{Focus: focus, ShortBreak: shortBreak, LongBreak: longBreak, LongBreakInterval: 4}
}

func TestNewEngineStartsIdleInFocus(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	state := h.engine.State()
	if state.Mode != ModeFocus {
		t.Fatalf("expected focus mode, got %s", state.Mode)
	}
	if state.TimeLeft != 25*60 {
		t.Fatalf("expected 1500 seconds, got %d", state.TimeLeft)
	}
	if state.Running {
		t.Fatal("new engine should not be running")
	}
}

func TestChangeModeLoadsFullDuration(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	cases := map[Mode]int{
		ModeShortBreak: 5 * 60,
		ModeLongBreak:  15 * 60,
		ModeFocus:      25 * 60,
	}
	for mode, want := range cases {
		h.engine.Start()
		h.clock.Advance(3 * time.Second)
		forceTick(h.engine)

		h.engine.ChangeMode(mode)
		state := h.engine.State()
		if state.Mode != mode {
			t.Fatalf("expected mode %s, got %s", mode, state.Mode)
		}
		if state.TimeLeft != want {
			t.Fatalf("mode %s: expected %d seconds, got %d", mode, want, state.TimeLeft)
		}
		if state.Running {
			t.Fatalf("mode %s: change mode should stop the timer", mode)
		}
	}
}

func TestChangeModeIgnoresUnknownMode(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.ChangeMode(ModeStopwatch)
	if h.engine.State().Mode != ModeFocus {
		t.Fatal("stopwatch is not a countdown mode")
	}
}

func TestStartThenPauseKeepsTime(t *testing.T) {
	h := newHarness(t, DefaultDurations())
	start := h.clock.Now()

	h.engine.Start()
	h.engine.Pause()

	state := h.engine.State()
	if state.TimeLeft != 1500 {
		t.Fatalf("expected 1500 seconds, got %d", state.TimeLeft)
	}
	if state.Running {
		t.Fatal("expected paused timer")
	}

	updates := h.sink.all()
	if len(updates) != 2 {
		t.Fatalf("expected 2 presence updates, got %d", len(updates))
	}
	if updates[0].Status != StatusStudying || updates[0].StartedAt == nil {
		t.Fatalf("expected studying update with start time, got %+v", updates[0])
	}
	if !updates[0].StartedAt.Equal(start) {
		t.Fatalf("expected reported start %v, got %v", start, *updates[0].StartedAt)
	}
	if updates[1].Status != StatusPaused {
		t.Fatalf("expected paused update, got %s", updates[1].Status)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	first := h.engine.State().TargetEnd
	h.clock.Advance(2 * time.Second)
	h.engine.Start()

	if !h.engine.State().TargetEnd.Equal(first) {
		t.Fatal("second start must not move the target")
	}
	if len(h.sink.all()) != 1 {
		t.Fatalf("expected a single studying update, got %d", len(h.sink.all()))
	}
}

func TestRemainingTimeIgnoresTickFrequency(t *testing.T) {
	sparse := newHarness(t, DefaultDurations())
	dense := newHarness(t, DefaultDurations())

	sparse.engine.Start()
	dense.engine.Start()

	sparse.clock.Advance(10 * time.Second)
	forceTick(sparse.engine)

	for i := 0; i < 50; i++ {
		dense.clock.Advance(200 * time.Millisecond)
		forceTick(dense.engine)
	}

	if got := sparse.engine.State().TimeLeft; got != 1490 {
		t.Fatalf("sparse ticks: expected 1490, got %d", got)
	}
	if got := dense.engine.State().TimeLeft; got != 1490 {
		t.Fatalf("dense ticks: expected 1490, got %d", got)
	}
}

func TestSuspendedTicksJumpToTrueRemaining(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	h.clock.Advance(1 * time.Second)
	forceTick(h.engine)
	h.clock.Advance(7 * time.Minute)
	forceTick(h.engine)

	if got := h.engine.State().TimeLeft; got != 1500-1-7*60 {
		t.Fatalf("expected %d, got %d", 1500-1-7*60, got)
	}
}

func TestPauseExcludesPausedTime(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Toggle()
	h.clock.Advance(10 * time.Second)
	forceTick(h.engine)
	if got := h.engine.State().TimeLeft; got != 1490 {
		t.Fatalf("expected 1490 after 10s, got %d", got)
	}

	h.engine.Toggle()
	h.clock.Advance(5 * time.Second)
	forceTick(h.engine)
	if got := h.engine.State().TimeLeft; got != 1490 {
		t.Fatalf("paused timer moved to %d", got)
	}

	h.engine.Toggle()
	h.clock.Advance(5 * time.Second)
	forceTick(h.engine)
	if got := h.engine.State().TimeLeft; got != 1485 {
		t.Fatalf("expected 1485 after resume, got %d", got)
	}
	if clicks := h.player.clicks.Load(); clicks != 3 {
		t.Fatalf("expected 3 clicks, got %d", clicks)
	}
}

func TestCompletionFiresExactlyOnce(t *testing.T) {
	h := newHarness(t, pomodoroDurations(6*time.Second, 5*time.Minute, 15*time.Minute))
	if got := h.engine.State().TimeLeft; got != 6 {
		t.Fatalf("expected 6 seconds, got %d", got)
	}

	h.engine.Start()
	h.clock.Advance(6500 * time.Millisecond)
	forceTick(h.engine)
	forceTick(h.engine)
	h.engine.Pause()

	state := h.engine.State()
	if state.TimeLeft != 0 {
		t.Fatalf("expected 0 seconds, got %d", state.TimeLeft)
	}
	if state.Running {
		t.Fatal("expired timer must not be running")
	}
	if got := h.completed.Load(); got != 1 {
		t.Fatalf("expected one completion, got %d", got)
	}
	if last := h.sink.last(t); last.Status != StatusIdle {
		t.Fatalf("expected idle after expiry, got %s", last.Status)
	}
}

func TestPauseAfterDeadlineCompletes(t *testing.T) {
	h := newHarness(t, pomodoroDurations(3*time.Second, time.Minute, time.Minute))

	h.engine.Start()
	h.clock.Advance(4 * time.Second)
	h.engine.Pause()

	if got := h.completed.Load(); got != 1 {
		t.Fatalf("expected completion on late pause, got %d", got)
	}
	if h.engine.State().TimeLeft != 0 {
		t.Fatal("expected 0 seconds left")
	}
}

func TestStartAfterExpiryRefillsMode(t *testing.T) {
	h := newHarness(t, pomodoroDurations(3*time.Second, time.Minute, time.Minute))

	h.engine.Start()
	h.clock.Advance(3 * time.Second)
	forceTick(h.engine)
	h.engine.Start()

	state := h.engine.State()
	if !state.Running || state.TimeLeft != 3 {
		t.Fatalf("expected a fresh 3s run, got %+v", state)
	}
}

func TestResetManualRestoresCurrentMode(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	h.clock.Advance(42 * time.Second)
	forceTick(h.engine)
	h.engine.Pause()
	h.engine.Start()
	h.clock.Advance(8 * time.Second)
	forceTick(h.engine)

	if logged := h.engine.State().FocusLoggedSeconds; logged != 50 {
		t.Fatalf("expected 50 focus seconds logged, got %d", logged)
	}

	h.engine.ResetManual()
	state := h.engine.State()
	if state.TimeLeft != 1500 || state.Running {
		t.Fatalf("unexpected state after reset: %+v", state)
	}
	if state.FocusLoggedSeconds != 0 {
		t.Fatalf("expected focus log cleared, got %d", state.FocusLoggedSeconds)
	}
	if last := h.sink.last(t); last.Status != StatusIdle {
		t.Fatalf("expected idle after interrupting reset, got %s", last.Status)
	}

	h.engine.ChangeMode(ModeLongBreak)
	h.engine.Start()
	h.clock.Advance(time.Minute)
	forceTick(h.engine)
	h.engine.ResetManual()
	if got := h.engine.State().TimeLeft; got != 900 {
		t.Fatalf("expected long break reset to 900, got %d", got)
	}
}

func TestShortBreakEndToEnd(t *testing.T) {
	h := newHarness(t, pomodoroDurations(25*time.Minute, 5*time.Minute, 15*time.Minute))

	h.engine.ChangeMode(ModeShortBreak)
	if got := h.engine.State().TimeLeft; got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}

	h.engine.Start()
	h.clock.Advance(6000 * time.Millisecond)
	forceTick(h.engine)
	if got := h.engine.State().TimeLeft; got != 294 {
		t.Fatalf("expected 294, got %d", got)
	}

	h.engine.Toggle()
	if h.engine.State().Running {
		t.Fatal("toggle should pause")
	}
	if last := h.sink.last(t); last.Status != StatusPaused {
		t.Fatalf("expected paused presence, got %s", last.Status)
	}
}

func TestApplyPresetPausesRunningTimer(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	h.clock.Advance(time.Minute)
	h.engine.ApplyPreset(50 * time.Minute)

	state := h.engine.State()
	if state.Running {
		t.Fatal("applying a preset must pause the timer")
	}
	if state.TimeLeft != 3000 {
		t.Fatalf("expected 3000, got %d", state.TimeLeft)
	}
	if last := h.sink.last(t); last.Status != StatusPaused {
		t.Fatalf("expected paused presence, got %s", last.Status)
	}

	h.engine.ApplyPreset(-5 * time.Minute)
	if got := h.engine.State().TimeLeft; got != 1 {
		t.Fatalf("expected non-positive preset clamped to 1, got %d", got)
	}
}

func TestApplyPresetAfterDeadlineStopsAutoStartedRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC))
	sink := &recordingSink{}
	var engine *Engine
	engine = New(pomodoroDurations(3*time.Second, time.Minute, 15*time.Minute), Options{
		Clock:        clock,
		TickInterval: 24 * time.Hour,
		Presence:     sink,
		OnComplete: func() {
			engine.Advance()
			engine.Start()
		},
	})
	t.Cleanup(engine.Close)

	engine.Start()
	clock.Advance(4 * time.Second)
	engine.ApplyPreset(10 * time.Minute)

	state := engine.State()
	if state.Mode != ModeShortBreak {
		t.Fatalf("expected completion to advance to shortBreak, got %s", state.Mode)
	}
	if state.Running || !state.TargetEnd.IsZero() {
		t.Fatalf("expected the auto-started break to be stopped, got %+v", state)
	}
	if state.TimeLeft != 600 {
		t.Fatalf("expected preset 600 seconds, got %d", state.TimeLeft)
	}
	if last := sink.last(t); last.Status != StatusPaused {
		t.Fatalf("expected paused presence last, got %s", last.Status)
	}

	clock.Advance(2 * time.Second)
	forceTick(engine)
	if got := engine.State().TimeLeft; got != 600 {
		t.Fatalf("preset lost after tick: %d", got)
	}
}

func TestStartPlaysClick(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	h.engine.Start()
	if clicks := h.player.clicks.Load(); clicks != 1 {
		t.Fatalf("expected one click for one real start, got %d", clicks)
	}
}

func TestAdvanceCyclesThroughLongBreak(t *testing.T) {
	durations := DefaultDurations()
	durations.LongBreakInterval = 2
	h := newHarness(t, durations)

	want := []Mode{ModeShortBreak, ModeFocus, ModeLongBreak, ModeFocus, ModeShortBreak}
	for i, expected := range want {
		if got := h.engine.Advance(); got != expected {
			t.Fatalf("step %d: expected %s, got %s", i, expected, got)
		}
	}
	if got := h.engine.State().CycleCount; got != 1 {
		t.Fatalf("expected cycle count 1, got %d", got)
	}
}

func TestUpdateDurationsFollowsUntouchedTimer(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	updated := DefaultDurations()
	updated.Focus = 50 * time.Minute
	h.engine.UpdateDurations(updated)
	if got := h.engine.State().TimeLeft; got != 3000 {
		t.Fatalf("expected idle timer to follow new duration, got %d", got)
	}

	h.engine.Start()
	h.clock.Advance(10 * time.Second)
	forceTick(h.engine)
	h.engine.Pause()

	updated.Focus = 30 * time.Minute
	h.engine.UpdateDurations(updated)
	if got := h.engine.State().TimeLeft; got != 2990 {
		t.Fatalf("expected paused time untouched, got %d", got)
	}
}

func TestTakeFocusLogZeroesCounter(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.Start()
	h.clock.Advance(90 * time.Second)

	if got := h.engine.TakeFocusLog(); got != 90 {
		t.Fatalf("expected 90 logged seconds, got %d", got)
	}
	if got := h.engine.TakeFocusLog(); got != 0 {
		t.Fatalf("expected counter zeroed, got %d", got)
	}
}

func TestBreakTimeIsNotLoggedAsFocus(t *testing.T) {
	h := newHarness(t, DefaultDurations())

	h.engine.ChangeMode(ModeShortBreak)
	h.engine.Start()
	h.clock.Advance(30 * time.Second)
	forceTick(h.engine)

	if got := h.engine.State().FocusLoggedSeconds; got != 0 {
		t.Fatalf("expected no focus seconds during a break, got %d", got)
	}
}

func TestClickFailureIsSwallowed(t *testing.T) {
	h := newHarness(t, DefaultDurations())
	h.player.err = errors.New("no audio device")

	h.engine.Toggle()
	if !h.engine.State().Running {
		t.Fatal("sound failure must not block start")
	}
}

func TestTickLoopPublishesSnapshots(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := New(DefaultDurations(), Options{Clock: clock})
	defer engine.Close()

	updates := engine.Subscribe(64)
	engine.Start()
	clock.Advance(time.Second)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-updates:
			if state.TimeLeft == 1499 {
				return
			}
		case <-deadline:
			t.Fatalf("tick loop never published 1499, last state %+v", engine.State())
		}
	}
}

func TestCloseReleasesTicker(t *testing.T) {
	h := newHarness(t, DefaultDurations())
	updates := h.engine.Subscribe(4)

	h.engine.Start()
	h.engine.Close()

	if h.engine.State().Running {
		t.Fatal("closed engine must not run")
	}
	h.engine.Start()
	if h.engine.State().Running {
		t.Fatal("start after close must be a no-op")
	}

	for range updates {
	}
}
