package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeySpace      = " "
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyTab        = "tab"
	KeyBackspace  = "backspace"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyJ          = "j"
	KeyK          = "k"
	KeyNotebook1  = "1"
	KeyNotebook2  = "2"
	KeyCycle      = "n"
	KeyToggleMode = "m"
	KeyEdit       = "e"
	KeyPlay       = "p"
	KeyReset      = "r"
)
