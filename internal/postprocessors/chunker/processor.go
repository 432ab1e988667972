// Package chunker provides a boundary-aware sliding-window chunker.
package chunker

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 50

// DefaultTolerance is how far back from the window end a boundary is sought.
const DefaultTolerance = 50

// segmentSeparator joins segment texts before windowing.
const segmentSeparator = "\n\n"

// Processor splits loader segments into overlapping chunks.
//
// Characters are runes. Consecutive chunks share exactly overlap runes, so
// the first chunk followed by every later chunk minus its first overlap
// runes reconstructs the joined text.
type Processor struct {
	chunkSize int
	overlap   int
	tolerance int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// WithTolerance sets how many characters before the window end the chunker
// may back off to find a paragraph, sentence or word boundary.
func WithTolerance(tolerance int) Option {
	return func(p *Processor) {
		p.tolerance = tolerance
	}
}

// New creates a chunker. It returns domain.ErrInvalidConfig unless
// 0 <= overlap < size.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		tolerance: DefaultTolerance,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, p.chunkSize)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidConfig, p.overlap, p.chunkSize)
	}
	if p.tolerance < 0 {
		p.tolerance = 0
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// span is a segment's rune range within the joined text.
type span struct {
	start, end int
	index      int
}

// header is a markdown heading and its rune offset.
type header struct {
	pos   int
	title string
}

// Process splits the segments into chunks.
// Input chunks are ignored; this processor creates new chunks from segments.
func (p *Processor) Process(
	ctx context.Context,
	doc *domain.Document,
	segments []domain.Segment,
	_ []domain.Chunk,
) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	text, spans := join(segments)
	n := len(text)
	if n == 0 {
		return nil, nil
	}
	headers := findHeaders(text)

	estimated := n/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	start := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + p.chunkSize
		if end >= n {
			end = n
		} else {
			end = p.boundary(text, start, end)
		}

		chunks = append(chunks, p.newChunk(doc.ID, len(chunks), text, start, end, spans, segments, headers))
		if end == n {
			break
		}
		start = end - p.overlap
	}

	return chunks, nil
}

// boundary picks the cut position for a window [start, end). It prefers a
// paragraph break, then a sentence end, then whitespace, searching back at
// most tolerance runes. The cut never falls at or before start+overlap, so
// every window advances.
func (p *Processor) boundary(text []rune, start, end int) int {
	minEnd := end - p.tolerance
	if floor := start + p.overlap + 1; minEnd < floor {
		minEnd = floor
	}
	if minEnd >= end {
		return end
	}

	for i := end; i >= minEnd; i-- {
		if i >= 2 && text[i-1] == '\n' && text[i-2] == '\n' {
			return i
		}
	}
	for i := end; i >= minEnd; i-- {
		if isSentenceEnd(text, i) {
			return i
		}
	}
	for i := end; i >= minEnd; i-- {
		if unicode.IsSpace(text[i-1]) {
			return i
		}
	}
	return end
}

// isSentenceEnd reports whether a sentence terminator sits just before i
// and is followed by whitespace or the end of text.
func isSentenceEnd(text []rune, i int) bool {
	switch text[i-1] {
	case '.', '!', '?', '。', '！', '？':
		return i == len(text) || unicode.IsSpace(text[i])
	default:
		return false
	}
}

func (p *Processor) newChunk(
	docID string,
	position int,
	text []rune,
	start, end int,
	spans []span,
	segments []domain.Segment,
	headers []header,
) domain.Chunk {
	meta := domain.ChunkMetadata{Source: docID, SegmentIndex: -1}

	for _, s := range spans {
		if s.end <= start || s.start >= end {
			continue
		}
		sm := segments[s.index].Metadata
		if meta.SegmentIndex < 0 {
			meta.SegmentIndex = s.index
			meta.Page = sm.Page
			meta.Sheet = sm.Sheet
			meta.Row = sm.Row
			meta.Paragraph = sm.Paragraph
			if sm.Source != "" {
				meta.Source = sm.Source
			}
		}
		meta.Spans = append(meta.Spans, domain.SegmentRef{
			Page:      sm.Page,
			Sheet:     sm.Sheet,
			Row:       sm.Row,
			Paragraph: sm.Paragraph,
			Start:     max(s.start, start) - start,
			End:       min(s.end, end) - start,
		})
	}
	if meta.SegmentIndex < 0 {
		meta.SegmentIndex = 0
	}
	meta.SectionTitle = sectionTitle(headers, start, end)

	return domain.Chunk{
		ID:         domain.ChunkID(docID, position),
		DocumentID: docID,
		Content:    string(text[start:end]),
		Position:   position,
		Start:      start,
		End:        end,
		Metadata:   meta,
	}
}

// join concatenates non-empty segment texts with a blank line between them.
func join(segments []domain.Segment) ([]rune, []span) {
	var (
		text  []rune
		spans []span
	)
	sep := []rune(segmentSeparator)
	for i, seg := range segments {
		r := []rune(seg.Text)
		if len(strings.TrimSpace(seg.Text)) == 0 {
			continue
		}
		if len(text) > 0 {
			text = append(text, sep...)
		}
		spans = append(spans, span{start: len(text), end: len(text) + len(r), index: i})
		text = append(text, r...)
	}
	return text, spans
}

// findHeaders returns markdown headings ("# Title") in order.
func findHeaders(text []rune) []header {
	var headers []header
	lineStart := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != '\n' {
			continue
		}
		line := string(text[lineStart:i])
		trimmed := strings.TrimLeft(line, "#")
		if hashes := len(line) - len(trimmed); hashes >= 1 && hashes <= 6 && strings.HasPrefix(trimmed, " ") {
			if title := strings.TrimSpace(trimmed); title != "" {
				headers = append(headers, header{pos: lineStart, title: title})
			}
		}
		lineStart = i + 1
	}
	return headers
}

// sectionTitle is the last heading at or before start, or else the first
// heading inside the chunk.
func sectionTitle(headers []header, start, end int) string {
	title := ""
	for _, h := range headers {
		if h.pos <= start {
			title = h.title
			continue
		}
		if title == "" && h.pos < end {
			return h.title
		}
		break
	}
	return title
}
