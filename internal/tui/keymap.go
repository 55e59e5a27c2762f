package tui

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyCtrlC      = "ctrl+c"
	KeyToggle     = " "
	KeyReset      = "r"
	KeyFocus      = "1"
	KeyShortBreak = "2"
	KeyLongBreak  = "3"
	KeySwitchView = "tab"
	KeyPreset     = "p"
	KeyTask       = "t"
	KeySave       = "s"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
)
