package cli

import (
	"github.com/spf13/cobra"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driving/mcp"
)

func newMCPCmd(s *session) *cobra.Command {
	var (
		addr     string
		noIngest bool
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server so AI assistants can ask
questions about the indexed insurance documents.

By default, the server communicates over stdio using JSON-RPC.
Use --http to serve the streamable HTTP transport instead.

Examples:
  # Stdio mode (for desktop assistants)
  ragbot mcp

  # HTTP mode (for MCP Inspector, remote access)
  ragbot mcp --http 127.0.0.1:8081

Assistant configuration:
  {
    "mcpServers": {
      "ragbot": {
        "command": "/path/to/ragbot",
        "args": ["mcp"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := s.App(cmd)
			if err != nil {
				return err
			}

			ports := &mcp.Ports{
				Ask:        app.Ask,
				Ingestion:  app.Ingestion,
				Management: app.Management,
			}
			if noIngest {
				ports.Ingestion = nil
			}

			server, err := mcp.NewServer(ports)
			if err != nil {
				return err
			}

			if addr != "" {
				cmd.PrintErrf("MCP server listening on http://%s\n", addr)
				return server.RunHTTP(cmd.Context(), addr)
			}
			return server.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "serve over HTTP on this address instead of stdio")
	cmd.Flags().BoolVar(&noIngest, "read-only", false, "do not offer the ingest_file tool")
	return cmd
}
