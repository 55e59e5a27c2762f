package timer

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Options carries the collaborators of an Engine.
type Options struct {
	Clock        clockwork.Clock
	TickInterval time.Duration
	Presence     PresenceSink
	Player       Player
	// OnComplete runs once per expired run, on the tick goroutine, without
	// the engine lock held.
	OnComplete func()
	Logger     *log.Logger
}

// runHandle owns the tick goroutine of one run.
type runHandle struct {
	ticker clockwork.Ticker
	stop   chan struct{}
}

func (h *runHandle) release() {
	h.ticker.Stop()
	close(h.stop)
}

// Engine is a drift-corrected pomodoro countdown. While running, the
// remaining time is always derived from an absolute target end instant.
type Engine struct {
	mu sync.Mutex

	clock      clockwork.Clock
	interval   time.Duration
	presence   PresenceSink
	player     Player
	onComplete func()
	logger     *log.Logger

	durations   Durations
	mode        Mode
	timeLeft    int
	running     bool
	targetEnd   time.Time
	cycleCount  int
	focusLogged int
	task        string

	run         *runHandle
	subscribers []chan State
	closed      bool
}

// New creates an idle engine in focus mode.
func New(durations Durations, options Options) *Engine {
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Logger == nil {
		options.Logger = log.Default()
	}

	durations = durations.normalized()
	return &Engine{
		clock:      options.Clock,
		interval:   options.TickInterval,
		presence:   options.Presence,
		player:     options.Player,
		onComplete: options.OnComplete,
		logger:     options.Logger,
		durations:  durations,
		mode:       ModeFocus,
		timeLeft:   seconds(durations.Focus),
	}
}

// Subscribe registers an observer that receives a snapshot after every
// change. Slow observers miss snapshots instead of blocking the engine.
func (e *Engine) Subscribe(buffer int) <-chan State {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan State, buffer)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch
	}
	e.subscribers = append(e.subscribers, ch)
	return ch
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Toggle starts an idle timer or pauses a running one. Both directions
// play the click.
func (e *Engine) Toggle() {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if running {
		e.playClick()
		e.Pause()
		return
	}
	e.Start()
}

// Start begins counting down from the displayed time and plays the click.
// It is a no-op while already running.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.closed || e.running {
		e.mu.Unlock()
		return
	}

	if e.timeLeft <= 0 {
		e.timeLeft = seconds(e.durations.For(e.mode))
	}

	now := e.clock.Now()
	e.targetEnd = now.Add(time.Duration(e.timeLeft) * time.Second)
	e.running = true
	e.acquireLocked()

	startedAt := e.targetEnd.Add(-e.durations.For(e.mode))
	update := StatusUpdate{
		Status:    StatusStudying,
		Task:      e.task,
		StartedAt: &startedAt,
		At:        now,
	}
	e.emitLocked()
	e.mu.Unlock()

	e.report(update)
	e.playClick()
}

// Pause stops the countdown and keeps the remaining time.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	if e.advanceLocked(now) {
		e.expireLocked(now)
		return
	}

	e.stopLocked()
	update := StatusUpdate{Status: StatusPaused, Task: e.task, At: now}
	e.emitLocked()
	e.mu.Unlock()

	e.report(update)
}

// ResetManual restores the full duration of the current mode.
func (e *Engine) ResetManual() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	interrupted := e.running
	e.stopLocked()

	e.timeLeft = seconds(e.durations.For(e.mode))
	if e.mode == ModeFocus {
		e.focusLogged = 0
	}
	update := StatusUpdate{Status: StatusIdle, Task: e.task, At: e.clock.Now()}
	e.emitLocked()
	e.mu.Unlock()

	if interrupted {
		e.report(update)
	}
}

// ChangeMode switches to mode and loads its full duration. Unknown modes
// are ignored.
func (e *Engine) ChangeMode(mode Mode) {
	if !mode.Valid() {
		e.logger.Printf("timer: ignoring unknown mode %q", mode)
		return
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	interrupted := e.running
	e.changeModeLocked(mode)
	update := StatusUpdate{Status: StatusIdle, Task: e.task, At: e.clock.Now()}
	e.emitLocked()
	e.mu.Unlock()

	if interrupted {
		e.report(update)
	}
}

// ApplyPreset loads a custom duration into the current mode. A running
// timer is paused first so the target instant never goes stale.
func (e *Engine) ApplyPreset(duration time.Duration) {
	e.Pause()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	// Pausing past the deadline completes the run, and the completion
	// callback may have started the next one.
	restarted := e.running
	if restarted {
		e.advanceLocked(e.clock.Now())
		e.stopLocked()
	}
	e.timeLeft = seconds(clampDuration(duration))
	update := StatusUpdate{Status: StatusPaused, Task: e.task, At: e.clock.Now()}
	e.emitLocked()
	e.mu.Unlock()

	if restarted {
		e.report(update)
	}
}

// UpdateDurations replaces the settings snapshot. An untouched idle timer
// follows the new duration of its mode.
func (e *Engine) UpdateDurations(durations Durations) {
	durations = durations.normalized()

	e.mu.Lock()
	defer e.mu.Unlock()

	previous := seconds(e.durations.For(e.mode))
	e.durations = durations
	if !e.running && e.timeLeft == previous {
		e.timeLeft = seconds(durations.For(e.mode))
	}
	e.emitLocked()
}

// Advance moves to the next mode of the pomodoro cycle and returns it.
// After focus, every LongBreakInterval-th break is a long one.
func (e *Engine) Advance() Mode {
	e.mu.Lock()
	if e.closed {
		mode := e.mode
		e.mu.Unlock()
		return mode
	}
	interrupted := e.running

	next := ModeFocus
	if e.mode == ModeFocus {
		e.cycleCount++
		next = ModeShortBreak
		if e.cycleCount >= e.durations.LongBreakInterval {
			next = ModeLongBreak
			e.cycleCount = 0
		}
	}
	e.changeModeLocked(next)
	update := StatusUpdate{Status: StatusIdle, Task: e.task, At: e.clock.Now()}
	e.emitLocked()
	e.mu.Unlock()

	if interrupted {
		e.report(update)
	}
	return next
}

// SetTask sets the task label sent along with presence updates.
func (e *Engine) SetTask(task string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task = task
	e.emitLocked()
}

// TakeFocusLog returns the focus seconds logged for the current block and
// zeroes the counter.
func (e *Engine) TakeFocusLog() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		e.advanceLocked(e.clock.Now())
	}
	logged := e.focusLogged
	e.focusLogged = 0
	e.emitLocked()
	return logged
}

// Close cancels the tick process and closes all subscriber channels.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.stopLocked()
	e.closed = true
	for _, ch := range e.subscribers {
		close(ch)
	}
	e.subscribers = nil
}

func (e *Engine) changeModeLocked(mode Mode) {
	e.stopLocked()
	e.mode = mode
	e.timeLeft = seconds(e.durations.For(mode))
	if mode == ModeFocus {
		e.focusLogged = 0
	}
}

func (e *Engine) acquireLocked() {
	if e.run != nil {
		return
	}
	handle := &runHandle{
		ticker: e.clock.NewTicker(e.interval),
		stop:   make(chan struct{}),
	}
	e.run = handle
	go e.loop(handle)
}

func (e *Engine) stopLocked() {
	if e.run != nil {
		e.run.release()
		e.run = nil
	}
	e.running = false
	e.targetEnd = time.Time{}
}

func (e *Engine) loop(handle *runHandle) {
	for {
		select {
		case <-handle.stop:
			return
		case <-handle.ticker.Chan():
			e.tick(handle)
		}
	}
}

func (e *Engine) tick(handle *runHandle) {
	e.mu.Lock()
	if e.run != handle || !e.running {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	if e.advanceLocked(now) {
		e.expireLocked(now)
		return
	}
	e.emitLocked()
	e.mu.Unlock()
}

// advanceLocked recomputes timeLeft from the target and reports whether
// the run has expired.
func (e *Engine) advanceLocked(now time.Time) bool {
	remaining := int(math.Ceil(e.targetEnd.Sub(now).Seconds()))
	if remaining < 0 {
		remaining = 0
	}
	if e.mode == ModeFocus && remaining < e.timeLeft {
		e.focusLogged += e.timeLeft - remaining
	}
	e.timeLeft = remaining
	return remaining == 0
}

// expireLocked ends the run and fires the completion callback. It releases
// the engine lock. The idle report goes out first so that a run started by
// the callback is the last status the sink sees.
func (e *Engine) expireLocked(now time.Time) {
	e.stopLocked()
	e.timeLeft = 0
	update := StatusUpdate{Status: StatusIdle, Task: e.task, At: now}
	onComplete := e.onComplete
	e.emitLocked()
	e.mu.Unlock()

	e.report(update)
	if onComplete != nil {
		onComplete()
	}
}

func (e *Engine) snapshotLocked() State {
	return State{
		Mode:               e.mode,
		TimeLeft:           e.timeLeft,
		Running:            e.running,
		TargetEnd:          e.targetEnd,
		CycleCount:         e.cycleCount,
		FocusLoggedSeconds: e.focusLogged,
		Task:               e.task,
	}
}

func (e *Engine) emitLocked() {
	if len(e.subscribers) == 0 {
		return
	}
	snapshot := e.snapshotLocked()
	for _, ch := range e.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (e *Engine) report(update StatusUpdate) {
	if e.presence == nil {
		return
	}
	e.presence.UpdateStatus(update)
}

func (e *Engine) playClick() {
	if e.player == nil {
		return
	}
	if err := e.player.PlayClick(); err != nil {
		e.logger.Printf("timer: play click: %v", err)
	}
}

func seconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
