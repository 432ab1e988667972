package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for ragbot resources.
	uriScheme = "ragbot://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.sdk.AddResource(&mcp.Resource{
		URI:         uriScheme + "files",
		Name:        "files",
		Description: "List of all indexed documents",
		MIMEType:    "application/json",
	}, s.handleFilesResource)

	s.sdk.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Index statistics and recent answer quality",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	// Template for a single document summary.
	s.sdk.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "files/{filename}",
		Name:        "file",
		Description: "Summary of one indexed document",
		MIMEType:    "application/json",
	}, s.handleFileResource)
}

// handleFilesResource returns every indexed document.
func (s *Server) handleFilesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	files, err := s.ports.Management.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	if len(files) == 0 {
		return jsonResult(req.Params.URI, "[]"), nil
	}

	data, err := json.MarshalIndent(files, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling files: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleStatsResource returns index statistics plus the quality summary.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	stats, err := s.ports.Management.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting stats: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{
		"index":   stats,
		"quality": s.ports.Ask.Quality(),
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling stats: %w", err)
	}
	return jsonResult(req.Params.URI, string(data)), nil
}

// handleFileResource returns the summary of one document.
func (s *Server) handleFileResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	filename := extractFilename(req.Params.URI)
	if filename == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	files, err := s.ports.Management.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	for i := range files {
		if files[i].Filename != filename {
			continue
		}
		data, err := json.MarshalIndent(files[i], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshalling file: %w", err)
		}
		return jsonResult(req.Params.URI, string(data)), nil
	}
	return nil, mcp.ResourceNotFoundError(req.Params.URI)
}

func jsonResult(uri, text string) *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		}},
	}
}

// extractFilename extracts the filename from a URI like ragbot://files/{filename}.
// Filenames may be percent-encoded.
func extractFilename(uri string) string {
	const prefix = uriScheme + "files/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil || strings.Contains(name, "/") {
		return ""
	}
	return name
}
