// Package plaintext provides a loader for plain text and markdown files,
// producing one segment per paragraph.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Loader implements the interface.
var _ driven.Loader = (*Loader)(nil)

// paragraphBreak matches one or more blank lines.
var paragraphBreak = regexp.MustCompile(`\n[ \t]*\n+`)

// Loader handles plain text documents.
type Loader struct{}

// New creates a new plain text loader.
func New() *Loader {
	return &Loader{}
}

// Name returns the loader name.
func (l *Loader) Name() string {
	return "plaintext"
}

// SupportedExtensions returns the extensions this loader handles.
func (l *Loader) SupportedExtensions() []string {
	return []string{"txt", "text", "md", "markdown", "csv", "log"}
}

// Priority returns the selection priority.
func (l *Loader) Priority() int {
	return 5 // Fallback loader
}

// Load splits the file on blank lines. Paragraph numbers are 1-based.
// Invalid UTF-8 sequences are replaced.
func (l *Loader) Load(_ context.Context, path string) ([]domain.Segment, error) {
	source := domain.DocumentIDFromPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}

	content := strings.ToValidUTF8(string(data), "\uFFFD")
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.ReplaceAll(content, "\r\n", "\n")

	var segments []domain.Segment
	for _, para := range paragraphBreak.Split(content, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text: para,
			Metadata: domain.SegmentMetadata{
				Source:    source,
				Paragraph: len(segments) + 1,
			},
		})
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s: no text", domain.ErrCorruptFile, source)
	}
	return segments, nil
}
