// Package dedupe drops chunks that repeat earlier text in the same document.
// Insurance PDFs repeat headers, footers and disclaimers on every page;
// indexing each copy crowds real passages out of the top results.
package dedupe

import (
	"context"
	"strings"
	"unicode"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Name is the registry key.
const Name = "dedupe"

// Processor keeps the first chunk of each distinct text. Texts compare
// case-insensitively with whitespace collapsed. Survivors are renumbered
// so positions stay contiguous.
type Processor struct{}

// New creates the processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the registry key.
func (p *Processor) Name() string {
	return Name
}

// Process filters chunks. Segments are ignored.
func (p *Processor) Process(
	ctx context.Context, doc *domain.Document, _ []domain.Segment, chunks []domain.Chunk,
) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		key := fingerprint(c.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		c.Position = len(out)
		c.ID = domain.ChunkID(doc.ID, c.Position)
		out = append(out, c)
	}
	return out, nil
}

func fingerprint(s string) string {
	return strings.ToLower(strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " "))
}
