// Package styles holds the lipgloss palette and styles of the chat UI.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette names the colours the chat UI draws with.
type Palette struct {
	Accent    lipgloss.Color // titles, assistant turns
	Highlight lipgloss.Color // user turns, subtitles
	Text      lipgloss.Color
	Dim       lipgloss.Color // citations, help, status
	Caution   lipgloss.Color // best-effort answers
	Danger    lipgloss.Color
	Edge      lipgloss.Color // input border
	Surface   lipgloss.Color // status bar and badge text
}

// DefaultPalette is a dark palette with blue and teal accents.
func DefaultPalette() Palette {
	return Palette{
		Accent:    "#2563EB",
		Highlight: "#14B8A6",
		Text:      "#E2E8F0",
		Dim:       "#64748B",
		Caution:   "#F59E0B",
		Danger:    "#EF4444",
		Edge:      "#334155",
		Surface:   "#0F172A",
	}
}

// Styles are the rendered styles used by views and components.
type Styles struct {
	palette Palette

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Normal     lipgloss.Style
	Muted      lipgloss.Style
	Selected   lipgloss.Style
	Error      lipgloss.Style
	Warning    lipgloss.Style
	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Help       lipgloss.Style

	// Question and Answer label transcript turns.
	Question lipgloss.Style
	Answer   lipgloss.Style

	// Badge marks answers assembled without a language model.
	Badge lipgloss.Style

	// Source renders one citation line.
	Source lipgloss.Style
}

// New derives the styles from p.
func New(p Palette) *Styles {
	text := lipgloss.NewStyle().Foreground(p.Text)
	dim := lipgloss.NewStyle().Foreground(p.Dim)

	return &Styles{
		palette:    p,
		Title:      lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Subtitle:   lipgloss.NewStyle().Bold(true).Foreground(p.Highlight),
		Normal:     text,
		Muted:      dim,
		Selected:   text.Bold(true).Background(p.Accent),
		Error:      lipgloss.NewStyle().Foreground(p.Danger),
		Warning:    lipgloss.NewStyle().Foreground(p.Caution),
		InputField: lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(p.Edge).Padding(0, 1),
		StatusBar:  dim.Background(p.Surface).Padding(0, 1),
		Help:       dim,
		Question:   lipgloss.NewStyle().Bold(true).Foreground(p.Highlight),
		Answer:     lipgloss.NewStyle().Bold(true).Foreground(p.Accent),
		Badge:      lipgloss.NewStyle().Bold(true).Foreground(p.Surface).Background(p.Caution).Padding(0, 1),
		Source:     dim.Italic(true).PaddingLeft(2),
	}
}

// DefaultStyles returns styles for DefaultPalette.
func DefaultStyles() *Styles {
	return New(DefaultPalette())
}

// Palette returns the colours the styles were built from.
func (s *Styles) Palette() Palette {
	return s.palette
}
