package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/tui"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

func newChatCmd(s *session) *cobra.Command {
	var (
		flags askFlags
		plain bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive question session",
		Long: `Starts an interactive session for asking questions about the indexed
documents.

On a terminal this opens the full-screen interface:
  Enter    - Ask
  Tab      - Switch between chat and indexed files
  PgUp/Dn  - Scroll the conversation
  Ctrl+L   - Clear the conversation
  F1       - Toggle help
  Ctrl+C   - Quit

When input is piped, or with --plain, each line is asked as a question and
answers are printed as text. Type "exit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			app, err := s.App(cmd)
			if err != nil {
				return err
			}

			if plain || !isTerminal(cmd.InOrStdin()) {
				return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), app.Ask, opts)
			}

			ui, err := tui.NewApp(tui.NewPorts(app.Ask, app.Management))
			if err != nil {
				return fmt.Errorf("failed to create TUI: %w", err)
			}
			if err := ui.WithContext(cmd.Context()).WithOptions(opts).Run(); err != nil {
				return fmt.Errorf("TUI error: %w", err)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "use line mode even on a terminal")
	return cmd
}

// runREPL asks each input line as a question until EOF, "exit" or ctx ends.
// A failed question is reported and the session continues.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, ask driving.AskService, opts domain.AskOptions) error {
	scanner := bufio.NewScanner(in)
	prompt := func() { fmt.Fprint(out, "> ") }

	prompt()
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			prompt()
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := ask.Ask(ctx, line, opts)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		} else {
			printAnswer(out, answer)
		}
		fmt.Fprintln(out)
		prompt()
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
