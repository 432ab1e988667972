package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_Locate(t *testing.T) {
	content := "Introduction.\n\nPolicy X covers accidental death.\n\nAppendix."
	c := Chunk{
		Content: content,
		Metadata: ChunkMetadata{
			Page: 1,
			Spans: []SegmentRef{
				{Page: 1, Start: 0, End: 13},
				{Page: 2, Start: 15, End: 48},
				{Page: 3, Start: 50, End: 59},
			},
		},
	}

	ref := c.Locate([]string{"policy", "cover"})

	assert.Equal(t, 2, ref.Page)
	assert.Equal(t, "Policy X covers accidental death.", c.SpanText(ref))
	assert.Equal(t, 1, c.Locate([]string{"nothing"}).Page, "ties go to the first span")
}

func TestChunk_LocateWithoutSpans(t *testing.T) {
	c := Chunk{Content: "abc", Metadata: ChunkMetadata{Sheet: "Rates", Row: 4}}

	ref := c.Locate([]string{"abc"})

	assert.Equal(t, "Rates", ref.Sheet)
	assert.Equal(t, 4, ref.Row)
	assert.Equal(t, "abc", c.SpanText(ref))
}
