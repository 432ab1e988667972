package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/ai"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/config/file"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/services"
)

// settingsService opens the config file without building the App, so
// settings can be repaired when they are invalid.
func (s *session) settingsService() (*services.SettingsService, *file.ConfigStore, error) {
	store, err := file.NewConfigStore(s.opts.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	return services.NewSettingsService(store, s.opts.Env), store, nil
}

func newSettingsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage application settings",
		Long: `View and change settings stored in config.toml.

API keys may also come from OPENAI_API_KEY, ANTHROPIC_API_KEY,
GOOGLE_API_KEY (or GEMINI_API_KEY) and OLLAMA_HOST, which take precedence
over the config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSettingsShow(cmd, s)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show current settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSettingsShow(cmd, s)
			},
		},
		&cobra.Command{
			Use:   "set [key] [value]",
			Short: "Change a setting",
			Long: `Change a setting. Values are validated before they are saved; list
values such as embedding.providers are comma separated.

Examples:
  ragbot settings set retrieval.k 8
  ragbot settings set embedding.providers openai,gemini
  ragbot settings set providers.ollama.model llama3.2`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, _, err := s.settingsService()
				if err != nil {
					return err
				}
				if err := svc.Set(args[0], args[1]); err != nil {
					return err
				}
				cmd.Printf("Set %s\n", args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List settable keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, _, err := s.settingsService()
				if err != nil {
					return err
				}
				for _, k := range svc.Keys() {
					cmd.Println(k)
				}
				cmd.Println("providers.<name>.{model,base_url,api_key}")
				return nil
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Ping every configured provider",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSettingsCheck(cmd, s)
			},
		},
		&cobra.Command{
			Use:   "api-key [provider]",
			Short: "Store a provider API key",
			Long:  `Prompts for an API key without echoing it and stores it in config.toml.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p := domain.AIProvider(strings.ToLower(args[0]))
				if !p.IsValid() || !p.RequiresAPIKey() {
					return fmt.Errorf("%w: %s does not use an API key", domain.ErrInvalidInput, args[0])
				}
				svc, _, err := s.settingsService()
				if err != nil {
					return err
				}

				cmd.Printf("Enter %s API key: ", p.Description())
				key := readPassword(cmd.InOrStdin())
				cmd.Println()
				if key == "" {
					return errors.New("API key is required for this provider")
				}
				if err := svc.Set("providers."+p.String()+".api_key", key); err != nil {
					return err
				}
				cmd.Printf("Stored API key %s\n", maskAPIKey(key))
				return nil
			},
		},
	)
	return cmd
}

// runSettingsCheck builds the provider chains from the current settings
// and pings each one in order. It fails only when no provider answers.
func runSettingsCheck(cmd *cobra.Command, s *session) error {
	svc, _, err := s.settingsService()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return err
	}
	chains, err := ai.BuildChains(cmd.Context(), *settings)
	if err != nil {
		return err
	}
	defer chains.Close()

	for _, w := range chains.Warnings {
		cmd.Printf("  %s\n", w)
	}
	healthy := 0
	for _, st := range ai.Check(cmd.Context(), chains) {
		status := "ok"
		if st.Err != nil {
			status = st.Err.Error()
		} else {
			healthy++
		}
		cmd.Printf("  %-9s %d. %-9s %-24s %s\n", st.Kind, st.Position+1, st.Name, st.Model, status)
	}
	if len(chains.LLM) == 0 {
		cmd.Println("No LLM provider configured; answers use the extractive fallback.")
	}
	if healthy == 0 {
		return fmt.Errorf("%w: no provider is reachable", domain.ErrEmbeddingUnavailable)
	}
	return nil
}

//nolint:gocyclo // Linear display of every settings group
func runSettingsShow(cmd *cobra.Command, s *session) error {
	svc, store, err := s.settingsService()
	if err != nil {
		return err
	}
	settings, err := svc.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("Config file: %s\n", store.Path())
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d  Overlap: %d  Tolerance: %d  Dedupe: %t\n",
		settings.Chunking.Size, settings.Chunking.Overlap, settings.Chunking.Tolerance, settings.Chunking.Dedupe)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  K: %d  Fetch K: %d\n", settings.Retrieval.K, settings.Retrieval.FetchK)
	cmd.Printf("  Diversity: %t  Lambda: %.2f\n", settings.Retrieval.Diversity, settings.Retrieval.Lambda)
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Capacity: %d  TTL: %s\n", settings.Cache.Capacity, settings.Cache.TTL)
	if settings.Cache.RedisURL != "" {
		cmd.Printf("  Redis: %s\n", settings.Cache.RedisURL)
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	printProviders(cmd, settings.Embedding.Providers)
	cmd.Printf("  Dimensions: %d  Retries: %d  Timeout: %s\n",
		settings.Embedding.Dimensions, settings.Embedding.Retries, settings.Embedding.Timeout)
	cmd.Println()

	cmd.Println("[LLM]")
	printProviders(cmd, settings.LLM.Providers)
	cmd.Printf("  Max tokens: %d  Temperature: %.2f  Timeout: %s\n",
		settings.LLM.MaxTokens, settings.LLM.Temperature, settings.LLM.Timeout)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Backend: %s\n", settings.Storage.Backend)
	if settings.Storage.DataDir != "" {
		cmd.Printf("  Data dir: %s\n", settings.Storage.DataDir)
	}
	if settings.Watch.Dir != "" {
		cmd.Printf("  Watch dir: %s (debounce %s)\n", settings.Watch.Dir, settings.Watch.Debounce)
	}
	if settings.Trace.File != "" {
		cmd.Printf("  Trace file: %s\n", settings.Trace.File)
	}
	cmd.Println()

	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ragbot settings set' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func printProviders(cmd *cobra.Command, providers []domain.ProviderSettings) {
	if len(providers) == 0 {
		cmd.Println("  Providers: (none configured)")
		return
	}
	for i, p := range providers {
		role := "fallback"
		if i == 0 {
			role = "primary"
		}
		status := "configured"
		if !p.IsConfigured() {
			status = "not configured"
		}
		cmd.Printf("  %d. %s [%s, %s]\n", i+1, p.Provider.Description(), role, status)
		if p.Model != "" {
			cmd.Printf("     Model: %s\n", p.Model)
		}
		if p.Provider.IsLocal() && p.BaseURL != "" {
			cmd.Printf("     Base URL: %s\n", p.BaseURL)
		}
		if p.Provider.RequiresAPIKey() {
			if p.APIKey != "" {
				cmd.Printf("     API Key: %s\n", maskAPIKey(p.APIKey))
			} else {
				cmd.Println("     API Key: (not set)")
			}
		}
	}
}

// readPassword reads a line without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	input, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
