package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/keymap"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/messages"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/styles"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/views/chat"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/views/files"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// App routes terminal events between the chat view, the files view and
// the help screen. It is the tea.Model handed to bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	chatView  *chat.View
	filesView *files.View

	// current is the visible view; beforeHelp is restored when help closes.
	current    messages.ViewType
	beforeHelp messages.ViewType

	err           error
	width, height int
	ready         bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:       ports,
		ctx:         context.Background(),
		styles:      s,
		keymap:      km,
		chatView:    chat.NewView(s, km, ports.Ask),
		filesView:   files.NewView(s, km, ports.Management),
		current:     messages.ViewChat,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.chatView.WithContext(ctx)
	a.filesView.WithContext(ctx)
	return a
}

// WithOptions sets the options sent with every question.
func (a *App) WithOptions(opts domain.AskOptions) *App {
	a.chatView.WithOptions(opts)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("ragbot - Insurance Assistant"),
		a.chatView.Init(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil
	case tea.KeyMsg:
		return a.handleKey(msg)
	case messages.ViewChanged:
		return a.switchTo(msg.View)
	case messages.Quit:
		return a, tea.Quit
	case messages.FilesLoaded, messages.FileDeleted:
		return a.toFiles(msg)
	case messages.AnswerReceived:
		a.err = msg.Err
	case messages.ErrorOccurred:
		a.err = msg.Err
	}
	// Answers, errors and input ticks such as cursor blink belong to chat.
	return a.toChat(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, a.keymap.Quit):
		return a, tea.Quit
	case keymap.Matches(key, a.keymap.Help):
		a.toggleHelp()
		return a, nil
	}

	switch a.current {
	case messages.ViewHelp:
		if keymap.Matches(key, a.keymap.Back) {
			a.toggleHelp()
		}
		return a, nil
	case messages.ViewFiles:
		if keymap.Matches(key, a.keymap.Files) {
			return a.switchTo(messages.ViewChat)
		}
		return a.toFiles(msg)
	default:
		// Leaving chat mid-question would orphan the pending answer.
		if keymap.Matches(key, a.keymap.Files) && !a.chatView.Thinking() {
			return a.switchTo(messages.ViewFiles)
		}
		return a.toChat(msg)
	}
}

func (a *App) toggleHelp() {
	if a.current == messages.ViewHelp {
		a.current = a.beforeHelp
		return
	}
	a.beforeHelp, a.current = a.current, messages.ViewHelp
}

func (a *App) toChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.chatView, cmd = a.chatView.Update(msg)
	return a, cmd
}

func (a *App) toFiles(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.filesView, cmd = a.filesView.Update(msg)
	return a, cmd
}

// switchTo activates view, loading data it needs.
func (a *App) switchTo(view messages.ViewType) (tea.Model, tea.Cmd) {
	if view == messages.ViewFiles && a.ports.Management == nil {
		a.err = files.ErrNoManagementService
		return a, nil
	}
	a.current = view
	switch view {
	case messages.ViewFiles:
		return a, a.filesView.Load()
	case messages.ViewChat:
		return a, a.chatView.Input().Focus()
	case messages.ViewHelp:
	}
	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	switch a.current {
	case messages.ViewFiles:
		return a.filesView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	default:
		return a.chatView.View()
	}
}

// viewHelp renders the keybindings.
func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n")
	for i, group := range a.keymap.FullHelp() {
		b.WriteString("\n")
		b.WriteString(a.styles.Subtitle.Render([]string{"Chat", "Files", "General"}[i]))
		b.WriteString("\n")
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %-10s %s\n", h.Key, h.Desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(a.styles.Muted.Render("Answers marked \"best effort\" were assembled from document excerpts " +
		"because no language model was reachable."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back"))
	return b.String()
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the visible view.
func (a *App) CurrentView() messages.ViewType { return a.current }

// Err returns the last answer or load error.
func (a *App) Err() error { return a.err }

// Ready reports whether the terminal size is known yet.
func (a *App) Ready() bool { return a.ready }

// Chat returns the chat view.
func (a *App) Chat() *chat.View {
	return a.chatView
}

// SetDimensions resizes both views. The first call marks the app ready.
func (a *App) SetDimensions(width, height int) {
	a.width, a.height, a.ready = width, height, true
	a.chatView.SetDimensions(width, height)
	a.filesView.SetDimensions(width, height)
}
