package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"fomopomo/internal/model"
	"fomopomo/internal/tui"
)

var (
	reportDate  string
	reportLimit int
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	studyingCell = cellStyle.Foreground(lipgloss.Color("#3FB68B"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded study sessions",
		Args:  cobra.NoArgs,
		RunE:  runSessionsCmd,
	}
	cmd.Flags().StringVar(&reportDate, "date", "", "study day (YYYY-MM-DD, default: all)")
	cmd.Flags().IntVar(&reportLimit, "limit", 20, "maximum sessions")
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show study totals for one day",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&reportDate, "date", "", "study day (YYYY-MM-DD, default: today)")
	return cmd
}

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank users by study time",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().StringVar(&reportDate, "date", "", "study day (YYYY-MM-DD, default: today)")
	cmd.Flags().IntVar(&reportLimit, "limit", 20, "maximum entries")
	return cmd
}

func newPresenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presence [user-id]",
		Short: "Show who is studying right now",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPresenceCmd,
	}
}

func runSessionsCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	sessions, err := ws.api.ListSessions(ctx, reportLimit, reportDate)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions yet")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		task := ""
		if session.Task != nil {
			task = *session.Task
		}
		rows = append(rows, []string{
			session.CreatedAt.Local().Format("2006-01-02 15:04"),
			session.Mode,
			tui.FormatDuration(session.DurationSeconds),
			task,
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"When", "Mode", "Length", "Task"}, rows, nil)
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	stats, err := ws.api.DailyStats(ctx, reportDate)
	if err != nil {
		return err
	}
	rows := [][]string{
		{"Focus", tui.FormatDuration(stats.FocusSeconds)},
		{"Stopwatch", tui.FormatDuration(stats.StopwatchSeconds)},
		{"Total", tui.FormatDuration(stats.TotalSeconds)},
		{"Sessions", strconv.Itoa(stats.Sessions)},
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Study day %s\n", stats.Date)
	return renderTable(cmd.OutOrStdout(), nil, rows, nil)
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	board, err := ws.api.Leaderboard(ctx, reportDate, reportLimit)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Leaderboard for %s\n", board.Date)
	if len(board.Entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nobody has studied yet")
		return nil
	}

	rows := make([][]string, 0, len(board.Entries))
	for _, entry := range board.Entries {
		rows = append(rows, []string{
			strconv.Itoa(entry.Rank),
			entry.Nickname,
			tui.FormatDuration(entry.TotalSeconds),
			entry.Status,
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"#", "Nickname", "Studied", "Status"}, rows, statusColumn(3, rows))
}

func runPresenceCmd(cmd *cobra.Command, args []string) error {
	ws, err := loadWorkspace()
	if err != nil {
		return err
	}
	if err := ws.requireLogin(); err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	if len(args) == 1 {
		view, err := ws.api.GetPresence(ctx, args[0])
		if err != nil {
			return err
		}
		rows := [][]string{presenceRow(view.Profile, view.ElapsedSeconds)}
		return renderTable(cmd.OutOrStdout(), presenceHeaders, rows, statusColumn(1, rows))
	}

	views, err := ws.api.ListPresence(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(views))
	for _, view := range views {
		rows = append(rows, presenceRow(view.Profile, view.ElapsedSeconds))
	}
	return renderTable(cmd.OutOrStdout(), presenceHeaders, rows, statusColumn(1, rows))
}

var presenceHeaders = []string{"Nickname", "Status", "For", "Task", "Last seen"}

func presenceRow(profile model.Profile, elapsed int) []string {
	task := ""
	if profile.CurrentTask != nil {
		task = *profile.CurrentTask
	}
	since := ""
	if profile.Status == model.StatusStudying {
		since = tui.FormatDuration(elapsed)
	}
	return []string{
		profile.Nickname,
		profile.Status,
		since,
		task,
		profile.LastActiveAt.Local().Format(time.Kitchen),
	}
}

// statusColumn highlights studying users in column col.
func statusColumn(col int, rows [][]string) func(row, column int) lipgloss.Style {
	return func(row, column int) lipgloss.Style {
		if row >= 0 && row < len(rows) && column == col && rows[row][col] == model.StatusStudying {
			return studyingCell
		}
		return cellStyle
	}
}

func renderTable(out io.Writer, headers []string, rows [][]string, style func(row, col int) lipgloss.Style) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Rows(rows...)
	if len(headers) > 0 {
		t = t.Headers(headers...)
	}
	t = t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if style != nil {
			return style(row, col)
		}
		return cellStyle
	})
	if _, err := fmt.Fprintln(out, t.Render()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
