package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Document represents an ingested file.
// Its identity is the source filename, so re-ingesting the same
// filename replaces the previous version.
type Document struct {
	// ID is the document identifier (the base filename).
	ID string `json:"id"`

	// Path is the location the file was ingested from.
	Path string `json:"path"`

	// FileType is the lower-case extension without the dot (pdf, xlsx, txt).
	FileType string `json:"file_type"`

	// SizeBytes is the size of the file at ingestion time.
	SizeBytes int64 `json:"size_bytes"`

	// ChunkCount is the number of chunks indexed for this document.
	ChunkCount int `json:"chunk_count"`

	// SegmentCount is the number of loader segments the file produced.
	SegmentCount int `json:"segment_count"`

	// Checksum is the hex SHA-256 of the file contents.
	Checksum string `json:"checksum,omitempty"`

	// UploadedAt is when the document was (re)ingested.
	UploadedAt time.Time `json:"uploaded_at"`

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentIDFromPath derives the document identity from a file path.
func DocumentIDFromPath(path string) string {
	return filepath.Base(filepath.Clean(path))
}

// FileTypeFromPath returns the lower-case extension of path without the dot.
func FileTypeFromPath(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// SegmentMetadata locates a segment within its source file.
// Zero values mean "not applicable" (a PDF segment has no sheet).
type SegmentMetadata struct {
	Source    string   `json:"source"`
	Page      int      `json:"page,omitempty"`
	Sheet     string   `json:"sheet,omitempty"`
	Row       int      `json:"row,omitempty"`
	Columns   []string `json:"columns,omitempty"`
	Paragraph int      `json:"paragraph,omitempty"`
}

// Segment is one unit of loader output.
type Segment struct {
	Text     string
	Metadata SegmentMetadata
}

// SegmentRef locates part of a chunk in its source segment.
// Start and End are rune offsets into the chunk content.
type SegmentRef struct {
	Page      int    `json:"page,omitempty"`
	Sheet     string `json:"sheet,omitempty"`
	Row       int    `json:"row,omitempty"`
	Paragraph int    `json:"paragraph,omitempty"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
}

// ChunkMetadata carries citation information for a chunk. The scalar
// fields describe the segment the chunk starts in; Spans covers every
// segment the chunk overlaps.
type ChunkMetadata struct {
	Source       string       `json:"source"`
	Page         int          `json:"page,omitempty"`
	Sheet        string       `json:"sheet,omitempty"`
	Row          int          `json:"row,omitempty"`
	Paragraph    int          `json:"paragraph,omitempty"`
	SegmentIndex int          `json:"segment_index"`
	SectionTitle string       `json:"section_title,omitempty"`
	Spans        []SegmentRef `json:"spans,omitempty"`
}

// Chunk represents a retrievable span of document text.
// Chunks are immutable once created and own exactly one embedding.
type Chunk struct {
	// ID is deterministic: the document ID and position joined by '#'.
	ID string `json:"id"`

	// DocumentID links to the parent Document.
	DocumentID string `json:"document_id"`

	// Content is the text content of this chunk.
	Content string `json:"content"`

	// Position is the ordinal position within the document.
	Position int `json:"position"`

	// Start and End are rune offsets into the concatenated document text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Embedding is the vector representation used for retrieval.
	Embedding []float32 `json:"-"`

	// Metadata points back at the originating segment.
	Metadata ChunkMetadata `json:"metadata"`
}

// IndexEntry is a chunk paired with its vector, ready for insertion.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// ScoredChunk is a search hit.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// SearchParams controls a vector index search.
type SearchParams struct {
	// K is the number of results to return.
	K int

	// FetchK is the candidate pool size considered for diversity re-ranking.
	FetchK int

	// Diversity enables maximal marginal relevance re-ranking.
	Diversity bool

	// Lambda trades relevance (1.0) against novelty (0.0).
	Lambda float64
}

// DocumentSummary is the management view of a document.
type DocumentSummary struct {
	Filename   string    `json:"filename"`
	Chunks     int       `json:"chunks"`
	FileType   string    `json:"file_type"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// SummaryOf builds the management view of d.
func SummaryOf(d Document) DocumentSummary {
	return DocumentSummary{
		Filename:   d.ID,
		Chunks:     d.ChunkCount,
		FileType:   d.FileType,
		SizeBytes:  d.SizeBytes,
		UploadedAt: d.UploadedAt,
	}
}

// IndexStats summarises the corpus.
type IndexStats struct {
	TotalFiles  int   `json:"total_files"`
	TotalChunks int   `json:"total_chunks"`
	IndexSize   int64 `json:"index_size"`
}

// IngestResult is returned by a successful ingestion.
type IngestResult struct {
	Status            string   `json:"status"`
	DocumentID        string   `json:"document_id"`
	ChunksCreated     int      `json:"chunks_created"`
	Degraded          bool     `json:"degraded,omitempty"`
	EmbeddingProvider []string `json:"embedding_providers,omitempty"`
}

// DeleteResult is returned by delete_file.
type DeleteResult struct {
	Status        string `json:"status"`
	ChunksRemoved int    `json:"chunks_removed"`
}

// Response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
