// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/styles"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// FileList displays indexed documents in a navigable list.
type FileList struct {
	files    []domain.DocumentSummary
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewFileList creates a new file list component.
func NewFileList(s *styles.Styles) *FileList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &FileList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the file list.
func (l *FileList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *FileList) Update(msg tea.Msg) (*FileList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the file list.
func (l *FileList) View() string {
	if len(l.files) == 0 {
		return l.styles.Muted.Render("No documents indexed")
	}

	lines := make([]string, 0, len(l.files)+1)

	visibleCount := l.height - 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(l.files) {
		end = len(l.files)
	}

	for i := start; i < end; i++ {
		lines = append(lines, l.renderFile(i, &l.files[i]))
	}

	if len(l.files) > visibleCount {
		lines = append(lines, l.styles.Muted.Render(
			fmt.Sprintf("  [%d-%d of %d]", start+1, end, len(l.files))))
	}

	return strings.Join(lines, "\n")
}

// renderFile formats a single document line.
func (l *FileList) renderFile(index int, f *domain.DocumentSummary) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	maxNameLen := l.width - 36
	if maxNameLen < 10 {
		maxNameLen = 10
	}
	name := truncate(f.Filename, maxNameLen)

	detail := fmt.Sprintf("%4s  %5d chunks  %8s", f.FileType, f.Chunks, HumanSize(f.SizeBytes))
	if index == l.selected {
		return l.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxNameLen, name, detail))
	}
	return l.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxNameLen, name)) +
		l.styles.Muted.Render(detail)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// HumanSize formats a byte count.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// MoveUp moves selection up.
func (l *FileList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *FileList) MoveDown() {
	if l.selected < len(l.files)-1 {
		l.selected++
	}
}

// SetFiles replaces the list contents, keeping the selection in range.
func (l *FileList) SetFiles(files []domain.DocumentSummary) {
	l.files = files
	if l.selected >= len(files) {
		l.selected = len(files) - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
}

// Files returns the current files.
func (l *FileList) Files() []domain.DocumentSummary {
	return l.files
}

// Selected returns the selected document, or nil if the list is empty.
func (l *FileList) Selected() *domain.DocumentSummary {
	if len(l.files) == 0 {
		return nil
	}
	return &l.files[l.selected]
}

// SelectedIndex returns the selected index.
func (l *FileList) SelectedIndex() int {
	return l.selected
}

// SetSize sets the list dimensions.
func (l *FileList) SetSize(width, height int) {
	l.width = width
	l.height = height
}
