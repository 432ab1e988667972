// Package status renders the one-line bar under the chat and files views.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/keymap"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/styles"
)

// Phase is what the bar reports on its left side.
type Phase string

const (
	PhaseReady    Phase = "ready"
	PhaseThinking Phase = "thinking"
	PhaseError    Phase = "error"
)

// Bar shows the current phase on the left and key hints on the right.
// The chat bar counts answers; the files bar counts indexed documents.
type Bar struct {
	styles *styles.Styles
	hints  []key.Binding
	files  bool
	width  int

	phase    Phase
	note     string
	answered int
	degraded int
	docs     int
}

// NewChatBar creates the chat view's bar.
func NewChatBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	km = orDefault(km)
	return newBar(s, km.ShortHelp(), false)
}

// NewFilesBar creates the files view's bar.
func NewFilesBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	km = orDefault(km)
	return newBar(s, km.FilesHelp(), true)
}

func orDefault(km *keymap.KeyMap) *keymap.KeyMap {
	if km == nil {
		return keymap.DefaultKeyMap()
	}
	return km
}

func newBar(s *styles.Styles, hints []key.Binding, files bool) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Bar{styles: s, hints: hints, files: files, width: 80, phase: PhaseReady}
}

// Thinking marks a question in flight.
func (b *Bar) Thinking() {
	b.phase, b.note = PhaseThinking, ""
}

// Answered records a successful answer. Degraded answers are counted
// separately so the user can tell how many were best effort.
func (b *Bar) Answered(degraded bool) {
	b.phase, b.note = PhaseReady, ""
	b.answered++
	if degraded {
		b.degraded++
	}
}

// Failed shows err until the next phase change.
func (b *Bar) Failed(err error) {
	b.phase, b.note = PhaseError, err.Error()
}

// Notify shows a one-off message in the ready phase.
func (b *Bar) Notify(msg string) {
	b.phase, b.note = PhaseReady, msg
}

// Dismiss drops any error or message, keeping the counters.
func (b *Bar) Dismiss() {
	b.phase, b.note = PhaseReady, ""
}

// SetDocuments sets the indexed document count shown by the files bar.
func (b *Bar) SetDocuments(n int) {
	b.docs = n
}

// SetWidth sets the rendered width.
func (b *Bar) SetWidth(w int) {
	b.width = w
}

// Phase returns the current phase.
func (b *Bar) Phase() Phase { return b.phase }

// Note returns the error or message on display.
func (b *Bar) Note() string { return b.note }

// Answers returns the successful and best-effort answer counts.
func (b *Bar) Answers() (answered, degraded int) { return b.answered, b.degraded }

// View renders the bar.
func (b *Bar) View() string {
	left, right := b.left(), b.right()
	gap := max(1, b.width-lipgloss.Width(left)-lipgloss.Width(right))
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) left() string {
	switch {
	case b.phase == PhaseThinking:
		return b.styles.Muted.Render("Thinking...")
	case b.phase == PhaseError && b.note != "":
		return b.styles.Error.Render("Error: " + b.note)
	case b.phase == PhaseError:
		return b.styles.Error.Render("Error")
	case b.note != "":
		return b.styles.Normal.Render(b.note)
	case b.files:
		return b.styles.Normal.Render(fmt.Sprintf("%d files", b.docs))
	case b.degraded > 0:
		return b.styles.Normal.Render(fmt.Sprintf("%d answered", b.answered)) +
			b.styles.Warning.Render(fmt.Sprintf(" (%d best effort)", b.degraded))
	case b.answered > 0:
		return b.styles.Normal.Render(fmt.Sprintf("%d answered", b.answered))
	}
	return b.styles.Muted.Render("Ready")
}

func (b *Bar) right() string {
	hints := make([]string, 0, len(b.hints))
	for _, k := range b.hints {
		h := k.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}
