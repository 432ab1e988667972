package driven

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// VectorIndex stores chunk vectors with their chunk metadata and supports
// similarity search.
//
// Writes are serialised by the implementation. Each Add, DeleteByDocument
// and ReplaceDocument is atomic: concurrent searches observe the index before or after the
// call, never in between.
type VectorIndex interface {
	// Add inserts entries. Entries with an existing chunk ID replace it.
	// Adding an empty slice is a no-op.
	Add(ctx context.Context, entries []domain.IndexEntry) error

	// DeleteByDocument removes every entry of the document and returns the
	// number removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// ReplaceDocument swaps every entry of the document for entries in one
	// step and returns the number of previous entries removed. Every entry
	// must belong to documentID. On error the previous entries are intact.
	ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) (int, error)

	// Search returns up to params.K chunks ranked by cosine similarity,
	// re-ranked with maximal marginal relevance when params.Diversity is set.
	// An empty index yields an empty result, never an error.
	Search(ctx context.Context, query []float32, params domain.SearchParams) ([]domain.ScoredChunk, error)

	// Count returns the number of entries.
	Count(ctx context.Context) (int, error)

	// Dimensions returns the vector size the index holds, or 0 if unset.
	Dimensions() int

	// SizeBytes reports the on-disk (or in-memory) footprint of the index.
	SizeBytes(ctx context.Context) (int64, error)

	// Verify checks internal consistency and returns domain.ErrIndexCorruption
	// when metadata and vectors disagree.
	Verify(ctx context.Context) error

	// Reset drops every entry. Used when rebuilding a corrupt index.
	Reset(ctx context.Context) error

	// Close releases resources.
	Close() error
}
