package output

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles of text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	// Verdict banners
	Pass lipgloss.Style
	Fail lipgloss.Style
}

// NewStyles builds styles bound to r, so color support follows its output.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header1: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: r.NewStyle().Bold(true).Underline(true),
		Bold:    r.NewStyle().Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")),
		Pass:    r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10")),
		Fail:    r.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")),
	}
}
