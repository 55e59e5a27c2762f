package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Stopwatch counts up from zero. Elapsed time is derived from the instant
// of the last resume, so a suspended process never loses time.
type Stopwatch struct {
	mu sync.Mutex

	clock    clockwork.Clock
	presence PresenceSink

	running     bool
	resumedAt   time.Time
	accumulated time.Duration
	task        string
}

// NewStopwatch creates a stopped stopwatch at zero.
func NewStopwatch(clock clockwork.Clock, presence PresenceSink) *Stopwatch {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Stopwatch{clock: clock, presence: presence}
}

// Toggle starts a stopped stopwatch or pauses a running one.
func (s *Stopwatch) Toggle() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running {
		s.Pause()
		return
	}
	s.Start()
}

// Start resumes counting. It is a no-op while running.
func (s *Stopwatch) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.running = true
	s.resumedAt = now
	startedAt := now.Add(-s.accumulated)
	update := StatusUpdate{Status: StatusStudying, Task: s.task, StartedAt: &startedAt, At: now}
	s.mu.Unlock()

	s.report(update)
}

// Pause freezes the elapsed time.
func (s *Stopwatch) Pause() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	s.accumulated += now.Sub(s.resumedAt)
	s.running = false
	s.resumedAt = time.Time{}
	update := StatusUpdate{Status: StatusPaused, Task: s.task, At: now}
	s.mu.Unlock()

	s.report(update)
}

// Reset stops the stopwatch and returns the elapsed time it held.
func (s *Stopwatch) Reset() time.Duration {
	s.mu.Lock()
	now := s.clock.Now()
	elapsed := s.elapsedLocked(now)
	interrupted := s.running
	s.running = false
	s.resumedAt = time.Time{}
	s.accumulated = 0
	update := StatusUpdate{Status: StatusIdle, Task: s.task, At: now}
	s.mu.Unlock()

	if interrupted {
		s.report(update)
	}
	return elapsed
}

// Elapsed returns the time counted so far.
func (s *Stopwatch) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked(s.clock.Now())
}

// Running reports whether the stopwatch is counting.
func (s *Stopwatch) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetTask sets the task label sent along with presence updates.
func (s *Stopwatch) SetTask(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.task = task
}

func (s *Stopwatch) elapsedLocked(now time.Time) time.Duration {
	if !s.running {
		return s.accumulated
	}
	return s.accumulated + now.Sub(s.resumedAt)
}

func (s *Stopwatch) report(update StatusUpdate) {
	if s.presence != nil {
		s.presence.UpdateStatus(update)
	}
}
