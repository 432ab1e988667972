package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

func entry(docID string, pos int, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:         domain.ChunkID(docID, pos),
			DocumentID: docID,
			Content:    fmt.Sprintf("%s chunk %d", docID, pos),
			Position:   pos,
		},
		Vector: vec,
	}
}

func params(k int) domain.SearchParams {
	return domain.SearchParams{K: k, FetchK: 20, Lambda: 0.5}
}

func TestVectorIndex_AddAndSearch(t *testing.T) {
	idx := NewVectorIndex(0)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("a.txt", 0, 1, 0),
		entry("a.txt", 1, 0, 3),
		entry("b.txt", 0, 2, 2),
	}))

	assert.Equal(t, 2, idx.Dimensions())
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := idx.Search(ctx, []float32{0, 1}, params(2))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt#1", results[0].Chunk.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "b.txt#0", results[1].Chunk.ID)
}

func TestVectorIndex_AddIsIdempotentByChunkID(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("a.txt", 0, 1, 0)}))
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("a.txt", 0, 0, 1)}))

	n, _ := idx.Count(ctx)
	assert.Equal(t, 1, n)

	results, err := idx.Search(ctx, []float32{0, 1}, params(1))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.NoError(t, idx.Verify(ctx))
}

func TestVectorIndex_AddEmptyIsNoop(t *testing.T) {
	idx := NewVectorIndex(0)
	require.NoError(t, idx.Add(context.Background(), nil))
	assert.Zero(t, idx.Dimensions())
}

func TestVectorIndex_AddRejectsMismatchAtomically(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	err := idx.Add(ctx, []domain.IndexEntry{
		entry("a.txt", 0, 1, 0),
		entry("a.txt", 1, 1, 0, 0),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, _ := idx.Count(ctx)
	assert.Zero(t, n)
}

func TestVectorIndex_DeleteByDocument(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("a.txt", 0, 1, 0),
		entry("a.txt", 1, 1, 1),
		entry("b.txt", 0, 0, 1),
	}))

	removed, err := idx.DeleteByDocument(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	results, err := idx.Search(ctx, []float32{1, 0}, params(5))
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a.txt", r.Chunk.DocumentID)
	}

	removed, err = idx.DeleteByDocument(ctx, "a.txt")
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, idx.Verify(ctx))
}

func TestVectorIndex_ReplaceDocument(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("a.txt", 0, 1, 0),
		entry("a.txt", 1, 1, 1),
		entry("a.txt", 2, 0, 1),
		entry("b.txt", 0, 0, 1),
	}))

	removed, err := idx.ReplaceDocument(ctx, "a.txt", []domain.IndexEntry{entry("a.txt", 0, 1, 0)})
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	n, _ := idx.Count(ctx)
	assert.Equal(t, 2, n)
	assert.NoError(t, idx.Verify(ctx))

	t.Run("foreign entry rejected", func(t *testing.T) {
		_, err := idx.ReplaceDocument(ctx, "a.txt", []domain.IndexEntry{entry("b.txt", 1, 1, 0)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("mismatch keeps previous entries", func(t *testing.T) {
		_, err := idx.ReplaceDocument(ctx, "a.txt", []domain.IndexEntry{entry("a.txt", 0, 1, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		n, _ := idx.Count(ctx)
		assert.Equal(t, 2, n)
	})

	t.Run("empty replacement deletes", func(t *testing.T) {
		removed, err := idx.ReplaceDocument(ctx, "a.txt", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		n, _ := idx.Count(ctx)
		assert.Equal(t, 1, n)
	})
}

func TestVectorIndex_SearchEmptyIndex(t *testing.T) {
	results, err := NewVectorIndex(3).Search(context.Background(), []float32{1, 0, 0}, params(5))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
}

func TestVectorIndex_SearchDimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(2)
	require.NoError(t, idx.Add(context.Background(), []domain.IndexEntry{entry("a.txt", 0, 1, 0)}))

	_, err := idx.Search(context.Background(), []float32{1, 0, 0}, params(1))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestVectorIndex_SearchDiversity(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		entry("a.txt", 0, 0.9, 0.436),
		entry("a.txt", 1, 0.9, 0.436),
		entry("b.txt", 0, 0.9, -0.436),
	}))

	p := params(2)
	p.Diversity = true
	results, err := idx.Search(ctx, []float32{1, 0}, p)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.txt#0", results[0].Chunk.ID)
	assert.Equal(t, "b.txt#0", results[1].Chunk.ID)
}

func TestVectorIndex_SizeResetVerify(t *testing.T) {
	idx := NewVectorIndex(4)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{entry("a.txt", 0, 1, 0, 0, 0)}))

	size, err := idx.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)

	idx.entries["orphan"] = entry("x.txt", 9, 1, 0, 0, 0)
	assert.ErrorIs(t, idx.Verify(ctx), domain.ErrIndexCorruption)

	require.NoError(t, idx.Reset(ctx))
	n, _ := idx.Count(ctx)
	assert.Zero(t, n)
	assert.NoError(t, idx.Verify(ctx))
	assert.NoError(t, idx.Close())
}

func TestVectorIndex_ConcurrentAddSearch(t *testing.T) {
	idx := NewVectorIndex(2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = idx.Add(ctx, []domain.IndexEntry{entry(fmt.Sprintf("doc%d", i), 0, 1, float32(i))})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = idx.Search(ctx, []float32{1, 0}, params(3))
		}()
	}
	wg.Wait()

	n, _ := idx.Count(ctx)
	assert.Equal(t, 10, n)
	assert.NoError(t, idx.Verify(ctx))
}
