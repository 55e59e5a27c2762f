// Package tui provides the Bubble Tea timer interface.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"fomopomo/internal/timer"
	"fomopomo/internal/tracker"
)

const (
	refreshInterval = 250 * time.Millisecond
	flashDuration   = 4 * time.Second
	maxTaskLength   = 200
)

type view int

const (
	viewPomodoro view = iota
	viewStopwatch
)

// Model implements the Bubble Tea timer UI.
type Model struct {
	tracker *tracker.Tracker
	states  <-chan timer.State

	view      view
	state     timer.State
	stopwatch time.Duration
	running   bool

	task         textinput.Model
	editingTask  bool
	startOnEnter bool

	flash      string
	flashUntil time.Time

	width  int
	height int
}

// New builds a model over t. The model subscribes to engine snapshots.
func New(t *tracker.Tracker) Model {
	input := textinput.New()
	input.Prompt = "Task: "
	input.Placeholder = "what are you working on?"
	input.CharLimit = maxTaskLength

	return Model{
		tracker: t,
		states:  t.Engine().Subscribe(16),
		state:   t.Engine().State(),
		task:    input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenStateCmd(m.states),
		listenCompletionCmd(m.tracker.Completions()),
		refreshCmd(),
	)
}

func listenStateCmd(states <-chan timer.State) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return engineClosedMsg{}
		}
		return stateMsg{State: state}
	}
}

func listenCompletionCmd(completions <-chan tracker.Completion) tea.Cmd {
	return func() tea.Msg {
		return completionMsg{Completion: <-completions}
	}
}

func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg {
		return refreshMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		m.state = msg.State
		return m, listenStateCmd(m.states)

	case engineClosedMsg:
		return m, tea.Quit

	case completionMsg:
		m.setFlash(describeCompletion(msg.Completion))
		m.state = m.tracker.Engine().State()
		return m, listenCompletionCmd(m.tracker.Completions())

	case refreshMsg:
		m.stopwatch = m.tracker.Stopwatch().Elapsed()
		m.running = m.tracker.Stopwatch().Running()
		if m.flash != "" && time.Now().After(m.flashUntil) {
			m.flash = ""
		}
		return m, refreshCmd()

	case tea.KeyMsg:
		if m.editingTask {
			return m.handleTaskKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	engine := m.tracker.Engine()
	stopwatch := m.tracker.Stopwatch()

	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		return m, tea.Quit

	case KeyToggle:
		if m.view == viewStopwatch {
			stopwatch.Toggle()
			m.running = stopwatch.Running()
			return m, nil
		}
		state := engine.State()
		if !state.Running && state.Mode == timer.ModeFocus && state.Task == "" && m.tracker.Settings().TaskPopupEnabled {
			m.startOnEnter = true
			return m.beginTaskEdit()
		}
		engine.Toggle()

	case KeyReset:
		if m.view == viewStopwatch {
			stopwatch.Reset()
			m.stopwatch = 0
			m.running = false
			return m, nil
		}
		engine.ResetManual()

	case KeyFocus:
		m.changeMode(timer.ModeFocus)
	case KeyShortBreak:
		m.changeMode(timer.ModeShortBreak)
	case KeyLongBreak:
		m.changeMode(timer.ModeLongBreak)

	case KeySwitchView:
		if m.view == viewPomodoro {
			engine.Pause()
			m.view = viewStopwatch
		} else {
			stopwatch.Pause()
			m.running = false
			m.view = viewPomodoro
		}

	case KeyPreset:
		if m.view != viewPomodoro {
			return m, nil
		}
		preset, ok := m.tracker.NextPreset()
		if !ok {
			m.setFlash("No presets configured")
			break
		}
		m.setFlash(fmt.Sprintf("Preset %s (%dm)", preset.Label, preset.Minutes))

	case KeyTask:
		m.startOnEnter = false
		return m.beginTaskEdit()

	case KeySave:
		var saved int
		if m.view == viewStopwatch {
			saved = m.tracker.SaveStopwatch()
			m.stopwatch = 0
			m.running = false
		} else {
			saved = m.tracker.SaveFocus()
		}
		if saved == 0 {
			m.setFlash("Nothing to save yet")
			break
		}
		m.setFlash("Saved " + FormatDuration(saved))
	}

	m.state = engine.State()
	return m, nil
}

func (m Model) handleTaskKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		return m, tea.Quit
	case KeyEsc:
		m.editingTask = false
		m.startOnEnter = false
		m.task.Blur()
		return m, nil
	case KeyEnter:
		m.editingTask = false
		m.task.Blur()
		m.tracker.SetTask(m.task.Value())
		if m.startOnEnter {
			m.startOnEnter = false
			m.tracker.Engine().Toggle()
		}
		m.state = m.tracker.Engine().State()
		return m, nil
	}

	var cmd tea.Cmd
	m.task, cmd = m.task.Update(msg)
	return m, cmd
}

func (m Model) beginTaskEdit() (tea.Model, tea.Cmd) {
	m.editingTask = true
	m.task.SetValue(m.state.Task)
	m.task.CursorEnd()
	return m, m.task.Focus()
}

func (m *Model) changeMode(mode timer.Mode) {
	if m.view != viewPomodoro {
		return
	}
	m.tracker.Engine().ChangeMode(mode)
}

func (m *Model) setFlash(text string) {
	m.flash = text
	m.flashUntil = time.Now().Add(flashDuration)
}

// View implements tea.Model.
func (m Model) View() string {
	sections := []string{
		m.renderHeader(),
		"",
		m.renderClock(),
		m.renderStatus(),
	}
	if m.editingTask {
		sections = append(sections, m.task.View())
	} else if task := m.renderTask(); task != "" {
		sections = append(sections, task)
	}
	if m.flash != "" {
		sections = append(sections, flashStyle.Render(m.flash))
	}
	sections = append(sections, "", m.renderFooter())

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHeader() string {
	tabs := []string{tabStyle.Render("Pomodoro"), tabStyle.Render("Stopwatch")}
	tabs[m.view] = activeTabStyle.Render([]string{"Pomodoro", "Stopwatch"}[m.view])
	return titleStyle.Render("FOMOPOMO") + "  " + strings.Join(tabs, " ")
}

func (m Model) renderClock() string {
	if m.view == viewStopwatch {
		return clockStyle.BorderForeground(colorSky).Render(FormatClock(int(m.stopwatch / time.Second)))
	}
	return clockStyle.BorderForeground(modeColor(m.state.Mode)).Render(FormatClock(m.state.TimeLeft))
}

func (m Model) renderStatus() string {
	running := m.state.Running
	label := modeLabel(m.state.Mode)
	if m.view == viewStopwatch {
		running = m.running
		label = "Stopwatch"
	}

	dot := pausedDotStyle.Render("○ " + label)
	if running {
		dot = runningDotStyle.Render("● " + label)
	}
	if m.view == viewPomodoro {
		dot += footerDescStyle.Render(fmt.Sprintf("  #%d", m.state.CycleCount+1))
		if m.state.FocusLoggedSeconds > 0 {
			dot += footerDescStyle.Render("  logged " + FormatDuration(m.state.FocusLoggedSeconds))
		}
	}
	return dot
}

func (m Model) renderTask() string {
	if m.state.Task == "" {
		return ""
	}
	width := 48
	if m.width > 0 && m.width-8 < width {
		width = m.width - 8
	}
	if width < 8 {
		width = 8
	}
	return taskStyle.Render(runewidth.Truncate(m.state.Task, width, "…"))
}

func (m Model) renderFooter() string {
	if m.editingTask {
		return footerKeyStyle.Render("Enter") + footerDescStyle.Render(" Save  ") +
			footerKeyStyle.Render("Esc") + footerDescStyle.Render(" Cancel")
	}

	keys := [][2]string{{"Space", "Start/Pause"}, {"r", "Reset"}}
	if m.view == viewPomodoro {
		keys = append(keys, [2]string{"1/2/3", "Mode"}, [2]string{"p", "Preset"})
	}
	keys = append(keys,
		[2]string{"t", "Task"},
		[2]string{"s", "Save"},
		[2]string{"Tab", "View"},
		[2]string{"q", "Quit"},
	)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, footerKeyStyle.Render(key[0])+footerDescStyle.Render(" "+key[1]))
	}
	return strings.Join(parts, "  ")
}

func describeCompletion(c tracker.Completion) string {
	text := modeLabel(c.Mode) + " finished"
	if c.RecordedSeconds > 0 {
		text += ", recorded " + FormatDuration(c.RecordedSeconds)
	}
	if c.AutoStarted {
		text += ". " + modeLabel(c.Next) + " started"
	} else {
		text += ". Next: " + modeLabel(c.Next)
	}
	return text
}

func modeLabel(mode timer.Mode) string {
	switch mode {
	case timer.ModeShortBreak:
		return "Short break"
	case timer.ModeLongBreak:
		return "Long break"
	case timer.ModeStopwatch:
		return "Stopwatch"
	default:
		return "Focus"
	}
}

// FormatClock renders seconds as MM:SS, or H:MM:SS from one hour up.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// FormatDuration renders seconds as a short human duration such as 1h 5m or 12m 30s.
func FormatDuration(seconds int) string {
	h, m, s := seconds/3600, seconds/60%60, seconds%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	case m > 0 && s > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
