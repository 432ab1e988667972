package postprocessors

import (
	"fmt"
	"sort"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Builder creates a processor from the chunking settings.
type Builder func(s domain.ChunkingSettings) (driven.PostProcessor, error)

// Registry maps processor names to builders.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder. Names must be unique.
func (r *Registry) Register(name string, b Builder) error {
	if _, ok := r.builders[name]; ok {
		return fmt.Errorf("processor %q already registered", name)
	}
	r.builders[name] = b
	return nil
}

// Build assembles a pipeline running the named processors in order.
func (r *Registry) Build(names []string, s domain.ChunkingSettings) (*Pipeline, error) {
	procs := make([]driven.PostProcessor, 0, len(names))
	for _, name := range names {
		b, ok := r.builders[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown processor %q", domain.ErrInvalidConfig, name)
		}
		proc, err := b(s)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", name, err)
		}
		procs = append(procs, proc)
	}
	return NewPipeline(procs...), nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
