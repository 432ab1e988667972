// Package files provides the indexed documents view for the TUI.
package files

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/components/list"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/components/status"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/keymap"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/messages"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/styles"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

// ErrNoManagementService is returned when the view has no service.
var ErrNoManagementService = errors.New("management service not available")

// View lists indexed documents and lets the user remove them.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	list      *list.FileList
	statusbar *status.Bar

	management driving.ManagementService
	ctx        context.Context

	stats      string
	confirming bool
	loading    bool
	err        error
	width      int
	height     int
}

// NewView creates a new files view.
func NewView(s *styles.Styles, km *keymap.KeyMap, management driving.ManagementService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:     s,
		keymap:     km,
		list:       list.NewFileList(s),
		statusbar:  status.NewFilesBar(s, km),
		management: management,
		ctx:        context.Background(),
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Load returns a command that fetches the documents and index stats.
func (v *View) Load() tea.Cmd {
	v.loading = true
	ctx, svc := v.ctx, v.management
	return func() tea.Msg {
		if svc == nil {
			return messages.FilesLoaded{Err: ErrNoManagementService}
		}
		files, err := svc.ListFiles(ctx)
		if err != nil {
			return messages.FilesLoaded{Err: err}
		}
		stats, err := svc.Stats(ctx)
		return messages.FilesLoaded{Files: files, Stats: stats, Err: err}
	}
}

// deleteFile returns a command that removes filename from the index.
func (v *View) deleteFile(filename string) tea.Cmd {
	ctx, svc := v.ctx, v.management
	return func() tea.Msg {
		if svc == nil {
			return messages.FileDeleted{Filename: filename, Err: ErrNoManagementService}
		}
		res, err := svc.DeleteFile(ctx, filename)
		return messages.FileDeleted{Filename: filename, Result: res, Err: err}
	}
}

// Update handles messages for the files view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		if v.confirming {
			return v.handleConfirmKey(msg)
		}
		return v.handleKeyMsg(msg)

	case messages.FilesLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.list.SetFiles(msg.Files)
			v.statusbar.SetDocuments(len(msg.Files))
			v.stats = ""
			if msg.Stats != nil {
				v.stats = fmt.Sprintf("%d files, %d chunks, %s",
					msg.Stats.TotalFiles, msg.Stats.TotalChunks, list.HumanSize(msg.Stats.IndexSize))
			}
		}
		return v, nil

	case messages.FileDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		return v, v.Load()
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewChat}
		}
	case keymap.Matches(key, v.keymap.Reload):
		return v, v.Load()
	case keymap.Matches(key, v.keymap.Delete):
		if v.list.Selected() != nil {
			v.confirming = true
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// handleConfirmKey handles the delete confirmation prompt.
func (v *View) handleConfirmKey(msg tea.KeyMsg) (*View, tea.Cmd) {
	v.confirming = false
	if msg.String() != "y" {
		return v, nil
	}
	selected := v.list.Selected()
	if selected == nil {
		return v, nil
	}
	return v, v.deleteFile(selected.Filename)
}

// View renders the files view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Indexed documents"))
	if v.stats != "" {
		b.WriteString("  " + v.styles.Muted.Render(v.stats))
	}
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	default:
		b.WriteString(v.list.View())
	}

	if v.confirming {
		if f := v.list.Selected(); f != nil {
			b.WriteString("\n\n")
			b.WriteString(v.styles.Warning.Render(
				fmt.Sprintf("Remove %s and its %d chunks from the index? (y/N)", f.Filename, f.Chunks)))
		}
	}

	b.WriteString("\n\n")
	b.WriteString(v.statusbar.View())
	return b.String()
}

// SetDimensions sets the view size.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.statusbar.SetWidth(width)
	// Title, blank lines, confirmation prompt and status bar.
	v.list.SetSize(width, max(height-7, 3))
}

// Confirming reports whether a delete confirmation is pending.
func (v *View) Confirming() bool {
	return v.confirming
}

// List returns the file list component.
func (v *View) List() *list.FileList {
	return v.list
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
