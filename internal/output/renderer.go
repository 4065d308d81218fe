package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Renderer writes to one stream in one effective mode.
type Renderer struct {
	w      io.Writer
	errW   io.Writer
	mode   Mode
	styles Styles
}

// NewRenderer creates a renderer for w. Auto mode is resolved against w;
// styles are colored only when w is a terminal.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	r := &Renderer{w: w, errW: errW, mode: resolve(mode, w)}
	if IsTerminal(w) {
		r.styles = NewStyles(lipgloss.NewRenderer(w))
	} else {
		lr := lipgloss.NewRenderer(w)
		lr.SetColorProfile(termenv.Ascii)
		r.styles = NewStyles(lr)
	}
	return r
}

// EffectiveMode returns the resolved output mode.
func (r *Renderer) EffectiveMode() Mode {
	return r.mode
}

// Styles returns the text styles.
func (r *Renderer) Styles() Styles {
	return r.styles
}

// Writer returns the output stream.
func (r *Renderer) Writer() io.Writer {
	return r.w
}

// Println writes a line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

// Printf writes formatted text.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.w, format, a...)
}

// Warnf writes a warning to the error stream.
func (r *Renderer) Warnf(format string, a ...any) {
	if r.errW == nil {
		return
	}
	_, _ = fmt.Fprintln(r.errW, r.styles.Warning.Render("Warning: "+fmt.Sprintf(format, a...)))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
