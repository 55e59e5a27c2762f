package tui

import (
	"github.com/charmbracelet/lipgloss"

	"fomopomo/internal/timer"
)

var (
	colorTomato = lipgloss.Color("#E5533D")
	colorMint   = lipgloss.Color("#3FB68B")
	colorSky    = lipgloss.Color("#4A90D9")
	colorGray   = lipgloss.Color("#6E6E6E")
	colorWhite  = lipgloss.Color("#F0F0F0")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorTomato)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Background(colorTomato).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite).
			Padding(1, 4).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTomato)

	runningDotStyle = lipgloss.NewStyle().
			Foreground(colorMint).
			Bold(true)

	pausedDotStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	taskStyle = lipgloss.NewStyle().
			Foreground(colorSky)

	flashStyle = lipgloss.NewStyle().
			Foreground(colorMint)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)

// modeColor tints the clock border per countdown mode.
func modeColor(mode timer.Mode) lipgloss.Color {
	switch mode {
	case timer.ModeShortBreak:
		return colorMint
	case timer.ModeLongBreak:
		return colorSky
	default:
		return colorTomato
	}
}
