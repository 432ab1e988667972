package domain

import "strings"

// Locate returns the segment of the chunk that mentions the most keywords,
// so citations point at the right page or row when a chunk spans several.
// Ties go to the earliest segment. Without spans the chunk's own metadata
// is returned.
func (c Chunk) Locate(keywords []string) SegmentRef {
	fallback := SegmentRef{
		Page:      c.Metadata.Page,
		Sheet:     c.Metadata.Sheet,
		Row:       c.Metadata.Row,
		Paragraph: c.Metadata.Paragraph,
		End:       len([]rune(c.Content)),
	}
	if len(c.Metadata.Spans) == 0 {
		return fallback
	}

	runes := []rune(c.Content)
	best, bestScore := c.Metadata.Spans[0], -1
	for _, span := range c.Metadata.Spans {
		if span.Start < 0 || span.End > len(runes) || span.Start >= span.End {
			continue
		}
		text := strings.ToLower(string(runes[span.Start:span.End]))
		score := 0
		for _, kw := range keywords {
			if kw != "" && strings.Contains(text, strings.ToLower(kw)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = span, score
		}
	}
	return best
}

// SpanText returns the chunk text covered by ref.
func (c Chunk) SpanText(ref SegmentRef) string {
	runes := []rune(c.Content)
	if ref.Start < 0 || ref.End > len(runes) || ref.Start >= ref.End {
		return c.Content
	}
	return string(runes[ref.Start:ref.End])
}
