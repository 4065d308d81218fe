// Package output renders governance results for people and machines.
//
// Output adapts to the environment: styled text on a terminal, markdown
// when piped, JSON on request.
package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Mode is a console output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// ParseMode validates a mode name. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeJSON:
		return Mode(s), nil
	case "md":
		return ModeMarkdown, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (expected auto, text, markdown or json)", s)
	}
}

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// resolve turns auto into text or markdown depending on w.
func resolve(mode Mode, w io.Writer) Mode {
	if mode != ModeAuto && mode != "" {
		return mode
	}
	if IsTerminal(w) {
		return ModeText
	}
	return ModeMarkdown
}
