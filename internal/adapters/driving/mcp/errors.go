// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants ask questions about the indexed insurance
// documents and manage the corpus.
package mcp

import "errors"

// ErrMissingAskService is returned when the ask service is not provided.
var ErrMissingAskService = errors.New("mcp: ask service is required")

// ErrMissingManagementService is returned when the management service is not provided.
var ErrMissingManagementService = errors.New("mcp: management service is required")
