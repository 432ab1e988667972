package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// askFlags holds the per-question options shared by ask and chat.
type askFlags struct {
	lang        string
	k           int
	noDiversity bool
	web         bool
}

func (f *askFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.lang, "lang", "l", "", "answer language: en or th (default: detected)")
	cmd.Flags().IntVarP(&f.k, "top-k", "k", 0, "number of passages to retrieve (default from settings)")
	cmd.Flags().BoolVar(&f.noDiversity, "no-diversity", false, "disable diversity re-ranking")
	cmd.Flags().BoolVar(&f.web, "web", false, "allow web search (currently has no effect)")
}

// options converts the flags to ask options.
func (f *askFlags) options() (domain.AskOptions, error) {
	lang, err := domain.ParseLanguage(f.lang)
	if err != nil {
		return domain.AskOptions{}, err
	}
	opts := domain.AskOptions{
		UseWebSearch: f.web,
		Language:     lang,
		K:            f.k,
	}
	if f.noDiversity {
		diversity := false
		opts.Diversity = &diversity
	}
	return opts, nil
}

func newAskCmd(s *session) *cobra.Command {
	var (
		flags    askFlags
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from indexed documents",
		Long: `Answers a question using the indexed insurance documents.

The most relevant passages are retrieved and a language model writes the
answer, citing its sources. When no language model is reachable the answer
is assembled from the best passages and marked "best effort".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			app, err := s.App(cmd)
			if err != nil {
				return err
			}

			answer, err := app.Ask.Ask(cmd.Context(), args[0], opts)
			if err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}

			if jsonMode {
				data, err := json.MarshalIndent(answer, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal answer: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}
			printAnswer(cmd.OutOrStdout(), answer)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output the answer as JSON")
	return cmd
}

// printAnswer writes an answer with its sources.
func printAnswer(w io.Writer, a *domain.Answer) {
	var tags []string
	if a.Degraded {
		tags = append(tags, "best effort")
	}
	if a.Cached {
		tags = append(tags, "cached")
	}
	if len(tags) > 0 {
		fmt.Fprintf(w, "[%s]\n", strings.Join(tags, ", "))
	}
	fmt.Fprintln(w, a.Text)

	if len(a.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for i, src := range a.Sources {
			fmt.Fprintf(w, "  [%d] %s (%.2f)\n", i+1, src.Citation(), src.Score)
		}
	}

	if len(a.Suggestions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "You could also ask:")
		for _, q := range a.Suggestions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
}
