package tui

import (
	"fomopomo/internal/timer"
	"fomopomo/internal/tracker"
)

// stateMsg carries an engine snapshot.
type stateMsg struct {
	State timer.State
}

// engineClosedMsg is sent once the engine closes its subscription.
type engineClosedMsg struct{}

// completionMsg carries an expired countdown.
type completionMsg struct {
	Completion tracker.Completion
}

// refreshMsg redraws the stopwatch and expires the flash line.
type refreshMsg struct{}
