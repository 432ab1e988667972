package driven

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// PostProcessor transforms loader output into chunks.
// Processors run in pipeline order; the first receives nil chunks and
// creates them from the segments.
type PostProcessor interface {
	// Name returns the processor name, matching its registry key.
	Name() string

	// Process returns the chunks for doc.
	Process(ctx context.Context, doc *domain.Document, segments []domain.Segment, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline runs processors in order.
type PostProcessorPipeline interface {
	// Process runs every processor and returns the final chunks.
	Process(ctx context.Context, doc *domain.Document, segments []domain.Segment) ([]domain.Chunk, error)
}
