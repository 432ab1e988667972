// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/components/input"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/components/status"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/keymap"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/messages"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui/styles"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

// ErrNoAskService is returned when a question is submitted without a service.
var ErrNoAskService = errors.New("ask service not available")

// maxSources caps the citations shown under an answer.
const maxSources = 5

// turn is one question with its answer or error.
type turn struct {
	question string
	answer   *domain.Answer
	err      error
}

// View is the chat view: a scrolling transcript above a question input.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.QuestionInput
	transcript viewport.Model
	statusbar  *status.Bar

	askService driving.AskService
	ctx        context.Context
	opts       domain.AskOptions

	turns    []turn
	thinking bool
	width    int
	height   int
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, askService driving.AskService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		transcript: viewport.New(80, 10),
		statusbar:  status.NewChatBar(s, km),
		askService: askService,
		ctx:        context.Background(),
		width:      80,
		height:     24,
	}
}

// WithContext sets the context used for questions.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithOptions sets the options sent with every question.
func (v *View) WithOptions(opts domain.AskOptions) *View {
	v.opts = opts
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.thinking = false
		v.statusbar.Failed(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, v.keymap.Send):
		return v, v.submit()

	case keymap.Matches(key, v.keymap.ScrollUp), keymap.Matches(key, v.keymap.ScrollDown):
		var cmd tea.Cmd
		v.transcript, cmd = v.transcript.Update(msg)
		return v, cmd

	case keymap.Matches(key, v.keymap.Clear):
		if !v.thinking {
			v.turns = nil
			v.statusbar.Dismiss()
			v.refresh()
		}
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// submit starts answering the typed question.
func (v *View) submit() tea.Cmd {
	question := strings.TrimSpace(v.input.Value())
	if question == "" || v.thinking {
		return nil
	}

	v.input.Reset()
	v.turns = append(v.turns, turn{question: question})
	v.thinking = true
	v.statusbar.Thinking()
	v.refresh()
	return v.ask(question)
}

// ask returns a command that answers question.
func (v *View) ask(question string) tea.Cmd {
	ctx, opts := v.ctx, v.opts
	service := v.askService
	return func() tea.Msg {
		if service == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoAskService}
		}
		answer, err := service.Ask(ctx, question, opts)
		return messages.AnswerReceived{Question: question, Answer: answer, Err: err}
	}
}

// handleAnswer records an answer against the pending question.
func (v *View) handleAnswer(msg messages.AnswerReceived) {
	v.thinking = false
	if n := len(v.turns); n > 0 && v.turns[n-1].answer == nil && v.turns[n-1].err == nil {
		v.turns[n-1].answer = msg.Answer
		v.turns[n-1].err = msg.Err
	}

	switch {
	case msg.Err != nil:
		v.statusbar.Failed(msg.Err)
	case msg.Answer != nil:
		v.statusbar.Answered(msg.Answer.Degraded)
	default:
		v.statusbar.Answered(false)
	}
	v.refresh()
}

// refresh re-renders the transcript and scrolls to the newest turn.
func (v *View) refresh() {
	v.transcript.SetContent(v.renderTranscript())
	v.transcript.GotoBottom()
}

func (v *View) renderTranscript() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("Ask a question about your indexed insurance documents. Thai and English are both fine.")
	}

	wrap := lipgloss.NewStyle().Width(max(v.width-2, 20))
	blocks := make([]string, 0, len(v.turns))
	for i := range v.turns {
		t := &v.turns[i]
		var b strings.Builder
		b.WriteString(v.styles.Question.Render("You: "))
		b.WriteString(wrap.Render(t.question))
		b.WriteString("\n")

		switch {
		case t.err != nil:
			b.WriteString(v.styles.Error.Render("Error: " + t.err.Error()))
		case t.answer == nil:
			b.WriteString(v.styles.Muted.Render("Thinking..."))
		default:
			b.WriteString(v.renderAnswer(t.answer, wrap))
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func (v *View) renderAnswer(a *domain.Answer, wrap lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(v.styles.Answer.Render("Assistant:"))
	if a.Degraded {
		b.WriteString(" " + v.styles.Badge.Render("best effort"))
	}
	if a.Cached {
		b.WriteString(" " + v.styles.Muted.Render("(cached)"))
	}
	b.WriteString("\n")
	b.WriteString(wrap.Render(a.Text))

	if len(a.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.Subtitle.Render("Sources"))
		for i, src := range a.Sources {
			if i == maxSources {
				b.WriteString("\n" + v.styles.Source.Render(fmt.Sprintf("... and %d more", len(a.Sources)-maxSources)))
				break
			}
			b.WriteString("\n" + v.styles.Source.Render(fmt.Sprintf("[%d] %s (%.2f)", i+1, src.Citation(), src.Score)))
		}
	}

	if len(a.Suggestions) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.Subtitle.Render("Try asking"))
		for _, s := range a.Suggestions {
			b.WriteString("\n" + v.styles.Muted.Render("  • "+s))
		}
	}
	return b.String()
}

// View renders the chat view.
func (v *View) View() string {
	title := v.styles.Title.Render("Insurance Assistant")
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		v.transcript.View(),
		v.input.View(),
		v.statusbar.View(),
	)
}

// SetDimensions sets the view size and lays out the transcript.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)

	// Title, bordered input (3 lines) and status bar.
	reserved := 1 + 3 + 1
	v.transcript.Width = width
	v.transcript.Height = max(height-reserved, 3)
	v.refresh()
}

// Thinking reports whether a question is being answered.
func (v *View) Thinking() bool {
	return v.thinking
}

// Answered returns the number of questions answered successfully.
func (v *View) Answered() int {
	n, _ := v.statusbar.Answers()
	return n
}

// Transcript returns the rendered transcript content.
func (v *View) Transcript() string {
	return v.renderTranscript()
}

// Input returns the question input.
func (v *View) Input() *input.QuestionInput {
	return v.input
}

// StatusBar returns the status bar.
func (v *View) StatusBar() *status.Bar {
	return v.statusbar
}
