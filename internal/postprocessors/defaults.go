package postprocessors

import (
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/postprocessors/chunker"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/postprocessors/dedupe"
)

// ChunkerName is the registry key of the chunker.
const ChunkerName = "chunker"

// NewDefaultRegistry returns a registry holding the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(ChunkerName, func(s domain.ChunkingSettings) (driven.PostProcessor, error) {
		return chunker.New(
			chunker.WithChunkSize(s.Size),
			chunker.WithOverlap(s.Overlap),
			chunker.WithTolerance(s.Tolerance),
		)
	})
	_ = r.Register(dedupe.Name, func(domain.ChunkingSettings) (driven.PostProcessor, error) {
		return dedupe.New(), nil
	})
	return r
}

// Stages returns the processor names the settings call for.
func Stages(s domain.ChunkingSettings) []string {
	if s.Dedupe {
		return []string{ChunkerName, dedupe.Name}
	}
	return []string{ChunkerName}
}

// NewDefaultPipeline builds the pipeline the settings call for.
func NewDefaultPipeline(s domain.ChunkingSettings) (*Pipeline, error) {
	return NewDefaultRegistry().Build(Stages(s), s)
}
