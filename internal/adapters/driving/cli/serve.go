package cli

import (
	"github.com/spf13/cobra"

	httpapi "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/http"
)

func newServeCmd(s *session) *cobra.Command {
	cfg := httpapi.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Starts a JSON API exposing the ask, ingest and file management operations.

Endpoints:
  POST   /api/ask               {"question": "...", "options": {...}}
  POST   /api/ingest            multipart "file" upload or {"path": "..."}
  GET    /api/files
  DELETE /api/files/{filename}
  GET    /api/stats
  GET    /api/quality
  GET    /health, /version

Uploads are only accepted when --upload-dir is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}
			if err := app.Ready(cmd.Context()); err != nil {
				return err
			}

			cfg.Version = s.version
			server, err := httpapi.NewServer(cfg, httpapi.Services{
				Ask:        app.Ask,
				Ingestion:  app.Ingestion,
				Management: app.Management,
			})
			if err != nil {
				return err
			}
			cmd.Printf("HTTP API listening on http://%s\n", cfg.Addr)
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().StringVar(&cfg.UploadDir, "upload-dir", "", "directory for uploaded files (empty disables uploads)")
	cmd.Flags().Int64Var(&cfg.MaxUploadBytes, "max-upload", cfg.MaxUploadBytes, "maximum upload size in bytes")
	cmd.Flags().StringSliceVar(&cfg.AllowedOrigins, "cors", nil, "allowed CORS origins (\"*\" for any)")
	return cmd
}
