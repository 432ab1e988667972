package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/watcher"
)

func newWatchCmd(s *session) *cobra.Command {
	var scan bool

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Keep the index in step with a directory",
		Long: `Watches a directory and indexes files as they are added or changed.
Removed or renamed files are deleted from the index. Changes are applied
after a short quiet period so partially written files are not ingested.

The directory defaults to the watch.dir setting.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}

			dir := app.Settings.Watch.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return errMissingWatchDir
			}

			w := watcher.New(dir, app.Settings.Watch.Debounce, app.Ingestion)
			defer w.Close()

			if scan {
				n, err := w.Scan(cmd.Context())
				cmd.Printf("Initial scan indexed %d files.\n", n)
				if err != nil {
					cmd.PrintErrf("Some files failed: %v\n", err)
				}
			}

			events, err := w.Run(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Watching %s (Ctrl+C to stop)\n", w.Dir())

			for ev := range events {
				name := filepath.Base(ev.Path)
				switch ev.Type {
				case watcher.ChangeIndexed:
					cmd.Printf("  ✓ indexed %s (%d chunks)\n", name, ev.Result.ChunksCreated)
				case watcher.ChangeRemoved:
					cmd.Printf("  - removed %s (%d chunks)\n", name, ev.ChunksRemoved)
				case watcher.ChangeFailed:
					cmd.PrintErrf("  ✗ %s: %v\n", name, ev.Err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scan, "scan", false, "index existing files before watching")
	return cmd
}
