package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory brute-force implementation of driven.VectorIndex.
type VectorIndex struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string]domain.IndexEntry
	byDocument map[string]map[string]struct{}
}

// NewVectorIndex creates an empty index. A zero dimension is fixed by the
// first Add.
func NewVectorIndex(dimensions int) *VectorIndex {
	return &VectorIndex{
		dimensions: dimensions,
		entries:    make(map[string]domain.IndexEntry),
		byDocument: make(map[string]map[string]struct{}),
	}
}

// Add inserts or replaces entries. Either every entry is applied or none is.
func (x *VectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dims, err := x.validate(entries)
	if err != nil {
		return err
	}
	x.apply(entries, dims)
	return nil
}

// ReplaceDocument swaps the document's entries under one lock.
func (x *VectorIndex) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Chunk.DocumentID != documentID {
			return 0, fmt.Errorf("%w: chunk %s does not belong to %s", domain.ErrInvalidInput, e.Chunk.ID, documentID)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dims := x.dimensions
	if len(entries) > 0 {
		var err error
		if dims, err = x.validate(entries); err != nil {
			return 0, err
		}
	}
	removed := x.deleteDocument(documentID)
	if len(entries) > 0 {
		x.apply(entries, dims)
	}
	return removed, nil
}

// validate checks entries against the index size (caller must hold lock).
func (x *VectorIndex) validate(entries []domain.IndexEntry) (int, error) {
	dims := x.dimensions
	if dims == 0 {
		dims = len(entries[0].Vector)
	}
	for _, e := range entries {
		if e.Chunk.ID == "" || e.Chunk.DocumentID == "" {
			return 0, fmt.Errorf("%w: entry without chunk or document ID", domain.ErrInvalidInput)
		}
		if len(e.Vector) != dims {
			return 0, fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), dims)
		}
	}
	return dims, nil
}

// apply stores validated entries (caller must hold lock).
func (x *VectorIndex) apply(entries []domain.IndexEntry, dims int) {
	x.dimensions = dims
	for _, e := range entries {
		if old, ok := x.entries[e.Chunk.ID]; ok && old.Chunk.DocumentID != e.Chunk.DocumentID {
			delete(x.byDocument[old.Chunk.DocumentID], e.Chunk.ID)
		}
		chunk := e.Chunk
		chunk.Embedding = nil
		x.entries[chunk.ID] = domain.IndexEntry{Chunk: chunk, Vector: vectormath.Normalize(e.Vector)}

		ids, ok := x.byDocument[chunk.DocumentID]
		if !ok {
			ids = make(map[string]struct{})
			x.byDocument[chunk.DocumentID] = ids
		}
		ids[chunk.ID] = struct{}{}
	}
}

// DeleteByDocument removes every entry of the document.
func (x *VectorIndex) DeleteByDocument(_ context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.deleteDocument(documentID), nil
}

func (x *VectorIndex) deleteDocument(documentID string) int {
	ids := x.byDocument[documentID]
	for id := range ids {
		delete(x.entries, id)
	}
	delete(x.byDocument, documentID)
	return len(ids)
}

// Search ranks every entry by cosine similarity to query.
func (x *VectorIndex) Search(ctx context.Context, query []float32, params domain.SearchParams) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.entries) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if len(query) != x.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), x.dimensions)
	}

	ids := make([]string, 0, len(x.entries))
	for id := range x.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		vectors[i] = x.entries[id].Vector
	}

	ranked := vectormath.Rank(query, vectors, params.K, params.FetchK, params.Diversity, params.Lambda)
	out := make([]domain.ScoredChunk, len(ranked))
	for i, c := range ranked {
		out[i] = domain.ScoredChunk{Chunk: x.entries[ids[c.Index]].Chunk, Score: c.Score}
	}
	return out, nil
}

// Count returns the number of entries.
func (x *VectorIndex) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

// Dimensions returns the vector size the index holds.
func (x *VectorIndex) Dimensions() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimensions
}

// SizeBytes estimates the vector payload: entries x dimensions x 4.
func (x *VectorIndex) SizeBytes(_ context.Context) (int64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return int64(len(x.entries)) * int64(x.dimensions) * 4, nil
}

// Verify checks that the per-document sets and the entries agree.
func (x *VectorIndex) Verify(_ context.Context) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	indexed := 0
	for docID, ids := range x.byDocument {
		for id := range ids {
			e, ok := x.entries[id]
			if !ok {
				return fmt.Errorf("%w: document %s lists missing chunk %s", domain.ErrIndexCorruption, docID, id)
			}
			if e.Chunk.DocumentID != docID {
				return fmt.Errorf("%w: chunk %s belongs to %s, listed under %s",
					domain.ErrIndexCorruption, id, e.Chunk.DocumentID, docID)
			}
			indexed++
		}
	}
	if indexed != len(x.entries) {
		return fmt.Errorf("%w: %d entries, %d referenced by documents", domain.ErrIndexCorruption, len(x.entries), indexed)
	}
	for id, e := range x.entries {
		if len(e.Vector) != x.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrIndexCorruption, id, len(e.Vector), x.dimensions)
		}
	}
	return nil
}

// Reset drops every entry.
func (x *VectorIndex) Reset(_ context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]domain.IndexEntry)
	x.byDocument = make(map[string]map[string]struct{})
	return nil
}

// Close releases resources.
func (x *VectorIndex) Close() error {
	return nil
}
