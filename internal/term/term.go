// Package term resolves the color mode once at startup and answers terminal
// questions for the renderer and the pause menu.
//
// Color state lives in fatih/color's package-level NoColor switch, which the
// renderer, menu and banner all print through. [Configure] sets it once
// during startup.
package term

import (
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	xterm "golang.org/x/term"

	"github.com/backmassage/vidshrink/internal/config"
)

// Configure resolves the color mode, applies it to fatih/color and reports
// whether colors are on.
func Configure(mode config.ColorMode) bool {
	enabled := resolve(mode)
	color.NoColor = !enabled
	return enabled
}

// Enabled reports whether colors are currently active.
func Enabled() bool { return !color.NoColor }

// resolve determines whether colors should be enabled based on the configured
// mode, TTY detection, and the NO_COLOR env var (https://no-color.org).
func resolve(mode config.ColorMode) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	default: // ColorAuto
		return IsTerminal(os.Stdout) &&
			os.Getenv("NO_COLOR") == "" &&
			strings.ToLower(os.Getenv("TERM")) != "dumb"
	}
}

// IsTerminal reports whether f is attached to a TTY.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return xterm.IsTerminal(int(f.Fd()))
}

// ClearScreen is the ANSI sequence that clears the screen and homes the cursor.
const ClearScreen = "\033[2J\033[H"

// CursorUp returns the sequence moving the cursor up n lines and clearing
// from there to the end of the screen.
func CursorUp(n int) string {
	if n <= 0 {
		return "\r\033[J"
	}
	return "\r\033[" + strconv.Itoa(n) + "A\033[J"
}
