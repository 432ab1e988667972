package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store, dir
}

func openIndex(t *testing.T, store *Store, dims int) driven.VectorIndex {
	t.Helper()
	idx, err := store.VectorIndex(context.Background(), "test-model", dims)
	require.NoError(t, err)
	return idx
}

func testEntry(docID string, pos int, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:         domain.ChunkID(docID, pos),
			DocumentID: docID,
			Content:    fmt.Sprintf("%s chunk %d", docID, pos),
			Position:   pos,
			Start:      pos * 10,
			End:        pos*10 + 10,
			Metadata: domain.ChunkMetadata{
				Source: docID,
				Page:   pos + 1,
				Spans:  []domain.SegmentRef{{Page: pos + 1, Start: 0, End: 10}},
			},
		},
		Vector: vec,
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, dir := setupTestStore(t)

	assert.Equal(t, filepath.Join(dir, "ragbot.db"), store.Path())
	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
}

func TestMigrate_AppliesNewerScriptsAtomically(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	scripts := fstest.MapFS{
		"002_notes.up.sql":   {Data: []byte("CREATE TABLE notes (id TEXT PRIMARY KEY);")},
		"002_notes.down.sql": {Data: []byte("DROP TABLE notes;")},
		"003_broken.up.sql":  {Data: []byte("CREATE TABLE other (id TEXT); NOT SQL;")},
	}
	err := store.migrate(ctx, scripts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_broken")

	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)

	var tables int
	require.NoError(t, store.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('notes', 'other')").Scan(&tables))
	assert.Equal(t, 1, tables, "the failed script leaves nothing behind")
}

// ==================== Document Store Tests ====================

func TestDocumentStore_SaveAndGet(t *testing.T) {
	store, _ := setupTestStore(t)
	ds := store.DocumentStore()
	ctx := context.Background()

	uploaded := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	doc := &domain.Document{
		ID:           "policy.pdf",
		Path:         "/docs/policy.pdf",
		FileType:     "pdf",
		SizeBytes:    2048,
		ChunkCount:   7,
		SegmentCount: 3,
		Checksum:     "abc123",
		UploadedAt:   uploaded,
		Metadata:     map[string]any{"pages": float64(3)},
	}
	require.NoError(t, ds.SaveDocument(ctx, doc))

	got, err := ds.GetDocument(ctx, "policy.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.Path, got.Path)
	assert.Equal(t, doc.FileType, got.FileType)
	assert.Equal(t, doc.SizeBytes, got.SizeBytes)
	assert.Equal(t, doc.ChunkCount, got.ChunkCount)
	assert.Equal(t, doc.SegmentCount, got.SegmentCount)
	assert.Equal(t, doc.Checksum, got.Checksum)
	assert.Equal(t, doc.Metadata, got.Metadata)
	assert.True(t, uploaded.Equal(got.UploadedAt), "uploaded_at %v != %v", got.UploadedAt, uploaded)
}

func TestDocumentStore_SaveReplaces(t *testing.T) {
	store, _ := setupTestStore(t)
	ds := store.DocumentStore()
	ctx := context.Background()

	require.NoError(t, ds.SaveDocument(ctx, &domain.Document{ID: "a.txt", FileType: "txt", ChunkCount: 1, UploadedAt: time.Now()}))
	require.NoError(t, ds.SaveDocument(ctx, &domain.Document{ID: "a.txt", FileType: "txt", ChunkCount: 4, UploadedAt: time.Now()}))

	docs, err := ds.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 4, docs[0].ChunkCount)
}

func TestDocumentStore_InvalidInput(t *testing.T) {
	store, _ := setupTestStore(t)
	ds := store.DocumentStore()

	assert.ErrorIs(t, ds.SaveDocument(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, ds.SaveDocument(context.Background(), &domain.Document{}), domain.ErrInvalidInput)
}

func TestDocumentStore_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	ds := store.DocumentStore()
	ctx := context.Background()

	_, err := ds.GetDocument(ctx, "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, ds.DeleteDocument(ctx, "missing.pdf"), domain.ErrNotFound)
}

func TestDocumentStore_ListOrderedAndDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ds := store.DocumentStore()
	ctx := context.Background()

	docs, err := ds.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)

	for _, id := range []string{"c.xlsx", "a.pdf", "b.txt"} {
		require.NoError(t, ds.SaveDocument(ctx, &domain.Document{ID: id, UploadedAt: time.Now()}))
	}

	docs, err = ds.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a.pdf", docs[0].ID)
	assert.Equal(t, "b.txt", docs[1].ID)
	assert.Equal(t, "c.xlsx", docs[2].ID)

	require.NoError(t, ds.DeleteDocument(ctx, "b.txt"))
	docs, err = ds.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

// ==================== Vector Index Tests ====================

func TestVectorIndex_AddSearchPersist(t *testing.T) {
	store, dir := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 0, 1, 0),
		testEntry("a.pdf", 1, 0, 3),
		testEntry("b.txt", 0, 2, 2),
	}))

	results, err := idx.Search(ctx, []float32{0, 1}, domain.SearchParams{K: 1, FetchK: 10, Lambda: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.pdf#1", results[0].Chunk.ID)
	assert.Equal(t, 2, results[0].Chunk.Metadata.Page)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	// A second Store on the same directory sees the committed rows.
	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	idx2 := openIndex(t, reopened, 2)
	n, err := idx2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err = idx2.Search(ctx, []float32{0, 1}, domain.SearchParams{K: 1, FetchK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.pdf#1", results[0].Chunk.ID)
	assert.Equal(t, []domain.SegmentRef{{Page: 2, Start: 0, End: 10}}, results[0].Chunk.Metadata.Spans)
	assert.NoError(t, idx2.Verify(ctx))
}

func TestVectorIndex_AddRejectsMismatchWithoutWriting(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	err := idx.Add(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 0, 1, 0),
		testEntry("a.pdf", 1, 1, 0, 0),
	})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	var rows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&rows))
	assert.Equal(t, 0, rows)
}

func TestVectorIndex_ExistingIndexKeepsItsDimensions(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, openIndex(t, store, 2).Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))

	idx := openIndex(t, store, 3)
	assert.Equal(t, 2, idx.Dimensions())

	_, err := idx.Search(ctx, []float32{1, 0, 0}, domain.SearchParams{K: 1})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Reset returns to the configured size so a rebuild can proceed.
	require.NoError(t, idx.Reset(ctx))
	assert.Equal(t, 3, idx.Dimensions())
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0, 0)}))
}

func TestVectorIndex_DeleteByDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 0, 1, 0),
		testEntry("a.pdf", 1, 1, 1),
		testEntry("b.txt", 0, 0, 1),
	}))

	n, err := idx.DeleteByDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.DeleteByDocument(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.NoError(t, idx.Verify(ctx))
}

func TestVectorIndex_ReplaceDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 0, 1, 0),
		testEntry("a.pdf", 1, 1, 1),
		testEntry("b.txt", 0, 0, 1),
	}))

	removed, err := idx.ReplaceDocument(ctx, "a.pdf", []domain.IndexEntry{testEntry("a.pdf", 0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoError(t, idx.Verify(ctx))

	_, err = idx.ReplaceDocument(ctx, "a.pdf", []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Reopen: the replacement is what was persisted.
	reopened := openIndex(t, store, 2)
	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := reopened.Search(ctx, []float32{0, 1}, domain.SearchParams{K: 2, FetchK: 10, Lambda: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.InDelta(t, 1.0, r.Score, 1e-6)
	}
}

func TestVectorIndex_SearchEmpty(t *testing.T) {
	store, _ := setupTestStore(t)
	idx := openIndex(t, store, 4)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, domain.SearchParams{K: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NoError(t, idx.Verify(context.Background()))
}

func TestVectorIndex_VerifyDetectsManifestDrift(t *testing.T) {
	store, dir := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))
	require.NoError(t, idx.Verify(ctx))

	manifest := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(manifest, []byte(`{"dimension":2,"model":"x","entries":9}`), 0600))
	assert.ErrorIs(t, idx.Verify(ctx), domain.ErrIndexCorruption)

	require.NoError(t, os.WriteFile(manifest, []byte(`not json`), 0600))
	assert.ErrorIs(t, idx.Verify(ctx), domain.ErrIndexCorruption)
}

func TestVectorIndex_VerifyDetectsBadBlob(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))
	_, err := store.db.Exec("UPDATE chunks SET embedding = ? WHERE id = ?", []byte{1, 2, 3}, "a.pdf#0")
	require.NoError(t, err)

	assert.ErrorIs(t, idx.Verify(ctx), domain.ErrIndexCorruption)
}

func TestVectorIndex_OpenWithBadBlobIsCorrupt(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))
	_, err := store.db.Exec("UPDATE chunks SET embedding = ? WHERE id = ?", []byte{1, 2, 3}, "a.pdf#0")
	require.NoError(t, err)

	reopened, err := store.VectorIndex(ctx, "test", 2)
	require.NoError(t, err, "a damaged index still opens")

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, reopened.Dimensions())
	assert.ErrorIs(t, reopened.Verify(ctx), domain.ErrIndexCorruption)

	require.NoError(t, reopened.Reset(ctx))
	require.NoError(t, reopened.Verify(ctx))
	require.NoError(t, reopened.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 0, 1)}))
	assert.NoError(t, reopened.Verify(ctx))
}

func TestVectorIndex_OpenWithMixedDimensionsIsCorrupt(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{
		testEntry("a.pdf", 0, 1, 0),
		testEntry("a.pdf", 1, 0, 1),
	}))
	_, err := store.db.Exec("UPDATE chunks SET embedding = ? WHERE id = ?", encodeVector([]float32{1, 0, 0}), "a.pdf#1")
	require.NoError(t, err)

	reopened, err := store.VectorIndex(ctx, "test", 2)
	require.NoError(t, err)
	assert.ErrorIs(t, reopened.Verify(ctx), domain.ErrIndexCorruption)
}

func TestVectorIndex_ResetAdoptsConfiguredDimensions(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)
	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))

	reopened := openIndex(t, store, 3)
	assert.Equal(t, 2, reopened.Dimensions(), "stored vectors keep their size until reset")

	require.NoError(t, reopened.Reset(ctx))
	assert.Equal(t, 3, reopened.Dimensions())
	require.NoError(t, reopened.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0, 0)}))
	assert.NoError(t, reopened.Verify(ctx))
}

func TestVectorIndex_SizeBytes(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	require.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry("a.pdf", 0, 1, 0)}))
	size, err := idx.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestVectorIndex_ConcurrentAddSearch(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	idx := openIndex(t, store, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, idx.Add(ctx, []domain.IndexEntry{testEntry(fmt.Sprintf("d%d.txt", i), 0, 1, float32(i))}))
		}(i)
		go func() {
			defer wg.Done()
			_, err := idx.Search(ctx, []float32{1, 0}, domain.SearchParams{K: 2})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	out, err = decodeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
