// Package postprocessors turns loader segments into chunks through an
// ordered pipeline of processors.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order. The first one receives nil chunks
// and creates them from the segments; later ones refine its output.
type Pipeline struct {
	procs []driven.PostProcessor
}

// NewPipeline creates a pipeline over procs.
func NewPipeline(procs ...driven.PostProcessor) *Pipeline {
	return &Pipeline{procs: procs}
}

// Process chunks doc.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, proc := range p.procs {
		out, err := proc.Process(ctx, doc, segments, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", proc.Name(), err)
		}
		chunks = out
	}
	return chunks, nil
}

// Stages returns the processor names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.procs))
	for i, proc := range p.procs {
		names[i] = proc.Name()
	}
	return names
}
