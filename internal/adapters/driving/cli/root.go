// Package cli provides the command-line interface for the insurance
// document assistant.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/runtime"
)

// Factory builds the application context for a command.
type Factory func(ctx context.Context, opts runtime.Options) (*runtime.App, error)

// session holds global flags and the lazily built App shared by one
// invocation's commands.
type session struct {
	version string
	factory Factory
	opts    runtime.Options
	verbose bool
	app     *runtime.App
}

// App builds the application context on first use.
func (s *session) App(cmd *cobra.Command) (*runtime.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	if s.factory == nil {
		return nil, errors.New("application not configured")
	}
	app, err := s.factory(cmd.Context(), s.opts)
	if err != nil {
		return nil, err
	}
	s.app = app
	return app, nil
}

// Close releases the App if one was built.
func (s *session) Close() error {
	if s.app == nil {
		return nil
	}
	err := s.app.Close()
	s.app = nil
	return err
}

// NewRootCommand builds the command tree. The returned function releases
// resources opened while running commands and must be called after Execute.
func NewRootCommand(version string, factory Factory) (*cobra.Command, func() error) {
	s := &session{version: version, factory: factory}

	rootCmd := &cobra.Command{
		Use:   "ragbot",
		Short: "Insurance document assistant",
		Long: `ragbot answers questions about insurance documents (policies, riders,
rate tables and FAQs) in English or Thai, citing the files and pages it used.

Index PDF, TXT, CSV and XLSX files with "ragbot ingest", then ask with
"ragbot ask" or start an interactive session with "ragbot chat".`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetOutput(cmd.ErrOrStderr())
			logger.SetVerbose(s.verbose)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "enable verbose output for debugging")
	flags.StringVar(&s.opts.ConfigDir, "config-dir", "", "configuration directory (default ~/.ragbot)")
	flags.StringVar(&s.opts.EnvFile, "env-file", ".env", "dotenv file with provider API keys")

	rootCmd.AddCommand(
		newAskCmd(s),
		newChatCmd(s),
		newIngestCmd(s),
		newFilesCmd(s),
		newDeleteCmd(s),
		newStatsCmd(s),
		newRebuildCmd(s),
		newWatchCmd(s),
		newServeCmd(s),
		newMCPCmd(s),
		newSettingsCmd(s),
		newVersionCmd(s),
	)

	return rootCmd, s.Close
}
