package mcp

import (
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions.
	Ask driving.AskService

	// Ingestion indexes files. Optional; without it ingest_file is not offered.
	Ingestion driving.IngestionService

	// Management lists, deletes and summarises documents.
	Management driving.ManagementService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ask == nil {
		return ErrMissingAskService
	}
	if p.Management == nil {
		return ErrMissingManagementService
	}
	return nil
}
