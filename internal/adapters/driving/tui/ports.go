// Package tui provides an interactive terminal chat for asking questions
// about the indexed insurance documents.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ask answers questions.
	Ask driving.AskService

	// Management lists and removes documents. Optional; without it the
	// files view is unavailable.
	Management driving.ManagementService
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(ask driving.AskService, management driving.ManagementService) *Ports {
	return &Ports{
		Ask:        ask,
		Management: management,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Ask == nil {
		return ErrMissingAskService
	}
	return nil
}
