package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/watcher"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

func newIngestCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [path...]",
		Short: "Index files or directories",
		Long: `Loads, chunks, embeds and indexes PDF, TXT, CSV and XLSX files.

Directories are walked recursively; hidden and temporary files are skipped.
Re-ingesting a file replaces its previous chunks. A file that fails is
reported and the remaining files are still processed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}

			paths, err := expandPaths(args, app.Ingestion)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				cmd.Println("No supported files found.")
				return nil
			}

			var errs []error
			indexed := 0
			for _, path := range paths {
				res, err := app.Ingestion.Ingest(cmd.Context(), path)
				if err != nil {
					cmd.PrintErrf("  ✗ %s: %v\n", filepath.Base(path), err)
					errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
					continue
				}
				indexed++
				cmd.Printf("  ✓ %s: %d chunks", res.DocumentID, res.ChunksCreated)
				if len(res.EmbeddingProvider) > 0 {
					cmd.Printf(" (embedding: %s)", strings.Join(res.EmbeddingProvider, ", "))
				}
				if res.Degraded {
					cmd.Print(" [fallback embedder]")
				}
				cmd.Println()
			}

			cmd.Printf("Indexed %d of %d files.\n", indexed, len(paths))
			if len(errs) > 0 {
				return fmt.Errorf("%d files failed: %w", len(errs), errors.Join(errs...))
			}
			return nil
		},
	}
}

// expandPaths resolves directories into the supported files they contain.
// Explicit file arguments are passed through so unsupported formats are
// reported by ingestion.
func expandPaths(args []string, ingestion driving.IngestionService) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, arg)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != arg && watcher.Ignored(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && ingestion.Supports(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", arg, err)
		}
	}
	return paths, nil
}

func newFilesCmd(s *session) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}
			files, err := app.Management.ListFiles(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list files: %w", err)
			}

			if jsonMode {
				if files == nil {
					files = []domain.DocumentSummary{}
				}
				data, err := json.MarshalIndent(files, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal files: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			if len(files) == 0 {
				cmd.Println("No documents indexed.")
				return nil
			}
			cmd.Printf("%-40s %-5s %7s %10s  %s\n", "FILENAME", "TYPE", "CHUNKS", "SIZE", "UPLOADED")
			for _, f := range files {
				cmd.Printf("%-40s %-5s %7d %10s  %s\n",
					f.Filename, f.FileType, f.Chunks, humanSize(f.SizeBytes), f.UploadedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

func newDeleteCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [filename]",
		Short: "Remove a document and its chunks from the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}
			res, err := app.Management.DeleteFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete %s: %w", args[0], err)
			}
			cmd.Printf("Deleted %s (%d chunks removed).\n", args[0], res.ChunksRemoved)
			return nil
		},
	}
}

func newStatsCmd(s *session) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics and configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}
			stats, err := app.Management.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			if jsonMode {
				data, err := json.MarshalIndent(map[string]any{
					"index":               stats,
					"embedding_providers": app.EmbeddingProviders,
					"llm_providers":       app.LLMProviders,
				}, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal stats: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println("[Index]")
			cmd.Printf("  Files:  %d\n", stats.TotalFiles)
			cmd.Printf("  Chunks: %d\n", stats.TotalChunks)
			cmd.Printf("  Size:   %s\n", humanSize(stats.IndexSize))
			cmd.Println()
			cmd.Println("[Providers]")
			cmd.Printf("  Embedding: %s\n", orNone(app.EmbeddingProviders))
			cmd.Printf("  LLM:       %s\n", orNone(app.LLMProviders))
			cmd.Printf("  Storage:   %s (%s)\n", app.Settings.Storage.Backend, app.Settings.Storage.DataDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	return cmd
}

func newRebuildCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Re-index every stored document into a fresh index",
		Long: `Clears the vector index and re-ingests every known document from its
original path. Documents whose files no longer exist are dropped.
Use this after changing the embedding provider or when the index is
reported as corrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}
			n, err := app.Management.Rebuild(cmd.Context())
			cmd.Printf("Rebuilt index from %d documents.\n", n)
			if err != nil {
				return fmt.Errorf("rebuild finished with errors: %w", err)
			}
			return nil
		},
	}
}

func orNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, " → ")
}

// humanSize formats a byte count.
func humanSize(n int64) string {
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
