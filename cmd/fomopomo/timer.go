package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fomopomo/internal/config"
	"fomopomo/internal/outbox"
	"fomopomo/internal/presence"
	"fomopomo/internal/settings"
	"fomopomo/internal/sound"
	"fomopomo/internal/timer"
	"fomopomo/internal/tracker"
	"fomopomo/internal/tui"
)

const settingsPullTimeout = 3 * time.Second

var (
	timerPlain   bool
	timerMode    string
	timerTask    string
	timerMinutes int
)

func newTimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Run the pomodoro timer",
		Args:  cobra.NoArgs,
		RunE:  runTimerCmd,
	}
	cmd.Flags().BoolVar(&timerPlain, "plain", false, "print progress lines instead of the full-screen UI")
	cmd.Flags().StringVar(&timerMode, "mode", string(timer.ModeFocus), "starting mode: focus, shortBreak or longBreak")
	cmd.Flags().StringVar(&timerTask, "task", "", "task label shown to other users")
	cmd.Flags().IntVar(&timerMinutes, "minutes", 0, "custom length of the first run in minutes")
	return cmd
}

func runTimerCmd(cmd *cobra.Command, _ []string) error {
	mode := timer.Mode(timerMode)
	if !mode.Valid() {
		return fmt.Errorf("--mode must be one of focus, shortBreak, longBreak")
	}
	if timerMinutes < 0 || timerMinutes > settings.MaxMinutes {
		return fmt.Errorf("--minutes must be between 1 and %d", settings.MaxMinutes)
	}

	ws, err := loadWorkspace()
	if err != nil {
		return err
	}

	plain := timerPlain || !term.IsTerminal(int(os.Stdout.Fd()))
	logger := log.New(os.Stderr, "fomopomo: ", log.LstdFlags)
	if !plain {
		logPath := filepath.Join(config.XDGDataHome(), "fomopomo", "fomopomo.log")
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logFile, err := tea.LogToFile(logPath, "fomopomo")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		logger = log.Default()
	}

	cached := loadTimerSettings(cmd.Context(), ws, logger)

	box, err := outbox.Open(cmd.Context(), ws.cfg.OutboxPath(), ws.api, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := box.Close(); cerr != nil {
			logErrf("failed to close outbox: %v\n", cerr)
		}
	}()

	var sink timer.PresenceSink
	if ws.loggedIn() {
		dispatcher := presence.NewDispatcher(ws.api, presence.Config{Logger: logger})
		defer dispatcher.Close()
		sink = dispatcher
	} else {
		logger.Printf("not logged in; presence and uploads are kept local")
	}

	bell := sound.NewBell(os.Stderr, cached.Settings.Volume, cached.Settings.IsMuted)

	tr := tracker.New(tracker.Config{
		Settings:     cached.Settings,
		TickInterval: ws.cfg.TickInterval(),
		Presence:     sink,
		Player:       bell,
		Recorder:     box,
		Logger:       logger,
	})
	defer tr.Close()

	tr.SetTask(timerTask)
	if mode != timer.ModeFocus {
		tr.Engine().ChangeMode(mode)
	}
	if timerMinutes > 0 {
		tr.Engine().ApplyPreset(time.Duration(timerMinutes) * time.Minute)
	}

	if plain {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runPlainTimer(ctx, tr, cmd.OutOrStdout())
	}

	program := tea.NewProgram(tui.New(tr), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	saveUnsaved(tr, cmd.OutOrStdout())
	return nil
}

// loadTimerSettings reads the local cache and refreshes it from the server
// when a newer version is available. Failures fall back to the cache.
func loadTimerSettings(ctx context.Context, ws *workspace, logger *log.Logger) settings.Cached {
	path := ws.cfg.SettingsPath()
	cached, err := settings.Load(path)
	if err != nil {
		logger.Printf("settings cache unreadable, using defaults: %v", err)
	}
	if !ws.loggedIn() {
		return cached
	}

	ctx, cancel := context.WithTimeout(ctx, settingsPullTimeout)
	defer cancel()
	remote, err := ws.api.GetSettings(ctx)
	if err != nil {
		logger.Printf("settings pull skipped: %v", err)
		return cached
	}
	if remote.Version <= cached.Version {
		return cached
	}
	cached = settings.Cached{Settings: settings.Normalize(remote.Settings), Version: remote.Version}
	if err := settings.Save(path, cached); err != nil {
		logger.Printf("settings cache not written: %v", err)
	}
	return cached
}

// runPlainTimer starts the countdown and prints one line per second until
// the run ends without auto-start or ctx is cancelled.
func runPlainTimer(ctx context.Context, tr *tracker.Tracker, out io.Writer) error {
	states := tr.Engine().Subscribe(16)
	tr.Engine().Start()

	lastLeft := -1
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			saveUnsaved(tr, out)
			return nil

		case state, ok := <-states:
			if !ok {
				return nil
			}
			if state.Running && state.TimeLeft != lastLeft {
				lastLeft = state.TimeLeft
				fmt.Fprintf(out, "%s %s\n", state.Mode, tui.FormatClock(state.TimeLeft))
			}

		case completion := <-tr.Completions():
			fmt.Fprintf(out, "%s finished", completion.Mode)
			if completion.RecordedSeconds > 0 {
				fmt.Fprintf(out, ", recorded %s", tui.FormatDuration(completion.RecordedSeconds))
			}
			fmt.Fprintln(out)
			if !completion.AutoStarted {
				return nil
			}
			lastLeft = -1
		}
	}
}

// saveUnsaved records focus or stopwatch time left unsaved at exit and
// stops both clocks.
func saveUnsaved(tr *tracker.Tracker, out io.Writer) {
	if saved := tr.SaveFocus(); saved > 0 {
		fmt.Fprintf(out, "Saved %s of focus\n", tui.FormatDuration(saved))
	}
	tr.Engine().ResetManual()
	if saved := tr.SaveStopwatch(); saved > 0 {
		fmt.Fprintf(out, "Saved %s on the stopwatch\n", tui.FormatDuration(saved))
	}
}
