package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/storage/memory"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

const manifestFilename = "index.json"

// manifest describes the persisted index.
type manifest struct {
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
	Entries   int       `json:"entries"`
	UpdatedAt time.Time `json:"updated_at"`
}

// vectorIndex implements driven.VectorIndex. Rows are the source of truth;
// cache mirrors them for search.
type vectorIndex struct {
	store      *Store
	model      string
	configured int

	// mu serialises writers so the database and cache stay in step.
	mu    sync.Mutex
	cache *memory.VectorIndex

	// damaged is the load failure that left the cache empty; cleared by Reset.
	damaged error
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// VectorIndex opens the persisted index and loads it into memory.
// dims is the size used for an empty index; an existing index keeps the
// size it was built with until Reset.
//
// Rows that cannot be loaded do not fail the open: the index starts empty
// at dims and Verify reports ErrIndexCorruption until Reset.
func (s *Store) VectorIndex(ctx context.Context, model string, dims int) (driven.VectorIndex, error) {
	x := &vectorIndex{store: s, model: model, configured: dims}
	if err := x.load(ctx); err != nil {
		if !errors.Is(err, domain.ErrIndexCorruption) {
			return nil, err
		}
		x.cache = memory.NewVectorIndex(dims)
		x.damaged = err
	}
	return x, nil
}

func (x *vectorIndex) load(ctx context.Context) error {
	rows, err := x.store.db.QueryContext(ctx, `
		SELECT id, document_id, position, start_offset, end_offset, content, metadata, embedding
		FROM chunks ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var entries []domain.IndexEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating chunks: %w", err)
	}

	dims := x.configured
	if len(entries) > 0 {
		dims = len(entries[0].Vector)
	}
	x.cache = memory.NewVectorIndex(dims)
	if err := x.cache.Add(ctx, entries); err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return fmt.Errorf("%w: %v", domain.ErrIndexCorruption, err)
		}
		return err
	}
	return nil
}

// Add upserts entries in one transaction, then updates the cache.
func (x *vectorIndex) Add(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.validate(entries); err != nil {
		return err
	}

	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := upsertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}

	if err := x.cache.Add(ctx, entries); err != nil {
		return err
	}
	return x.writeManifest()
}

// ReplaceDocument deletes and re-inserts the document's rows in one
// transaction, so readers of the database never see a half-indexed document.
func (x *vectorIndex) ReplaceDocument(ctx context.Context, documentID string, entries []domain.IndexEntry) (int, error) {
	for _, e := range entries {
		if e.Chunk.DocumentID != documentID {
			return 0, fmt.Errorf("%w: chunk %s does not belong to %s", domain.ErrInvalidInput, e.Chunk.ID, documentID)
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if len(entries) > 0 {
		if err := x.validate(entries); err != nil {
			return 0, err
		}
	}

	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	if err := upsertEntries(ctx, tx, entries); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing replace: %w", err)
	}

	if _, err := x.cache.ReplaceDocument(ctx, documentID, entries); err != nil {
		return 0, err
	}
	return int(removed), x.writeManifest()
}

// validate checks entries against the index size (caller must hold mu).
func (x *vectorIndex) validate(entries []domain.IndexEntry) error {
	dims := x.cache.Dimensions()
	if dims == 0 {
		dims = len(entries[0].Vector)
	}
	for _, e := range entries {
		if e.Chunk.ID == "" || e.Chunk.DocumentID == "" {
			return fmt.Errorf("%w: entry without chunk or document ID", domain.ErrInvalidInput)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), dims)
		}
	}
	return nil
}

func upsertEntries(ctx context.Context, tx *sql.Tx, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, position, start_offset, end_offset, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			content = excluded.content,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		metadataJSON, err := json.Marshal(e.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling chunk metadata: %w", err)
		}
		c := e.Chunk
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Position, c.Start, c.End, c.Content,
			string(metadataJSON), encodeVector(vectormath.Normalize(e.Vector))); err != nil {
			return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// DeleteByDocument removes every chunk of the document.
func (x *vectorIndex) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted chunks: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}

	if _, err := x.cache.DeleteByDocument(ctx, documentID); err != nil {
		return 0, err
	}
	if n > 0 {
		if err := x.writeManifest(); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

// Search runs against the in-memory copy.
func (x *vectorIndex) Search(ctx context.Context, query []float32, params domain.SearchParams) ([]domain.ScoredChunk, error) {
	return x.cache.Search(ctx, query, params)
}

// Count returns the number of entries.
func (x *vectorIndex) Count(ctx context.Context) (int, error) {
	return x.cache.Count(ctx)
}

// Dimensions returns the vector size the index holds.
func (x *vectorIndex) Dimensions() int {
	return x.cache.Dimensions()
}

// SizeBytes reports the on-disk footprint: database, WAL and manifest.
func (x *vectorIndex) SizeBytes(_ context.Context) (int64, error) {
	var total int64
	for _, p := range []string{x.store.path, x.store.path + "-wal", x.manifestPath()} {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		total += info.Size()
	}
	return total, nil
}

// Verify checks the manifest, the rows and the cache against each other.
func (x *vectorIndex) Verify(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.damaged != nil {
		return x.damaged
	}
	dims := x.cache.Dimensions()

	var rowCount, badBlobs int
	if err := x.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&rowCount); err != nil {
		return fmt.Errorf("counting chunks: %w", err)
	}
	if err := x.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE length(embedding) != ?", dims*4).Scan(&badBlobs); err != nil {
		return fmt.Errorf("checking embeddings: %w", err)
	}
	if badBlobs > 0 {
		return fmt.Errorf("%w: %d chunks do not have %d dimensions", domain.ErrIndexCorruption, badBlobs, dims)
	}

	cached, err := x.cache.Count(ctx)
	if err != nil {
		return err
	}
	if cached != rowCount {
		return fmt.Errorf("%w: %d rows, %d in memory", domain.ErrIndexCorruption, rowCount, cached)
	}

	m, err := x.readManifest()
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Nothing written yet.
	case err != nil:
		return fmt.Errorf("%w: %v", domain.ErrIndexCorruption, err)
	case m.Entries != rowCount:
		return fmt.Errorf("%w: manifest lists %d entries, %d rows", domain.ErrIndexCorruption, m.Entries, rowCount)
	case rowCount > 0 && m.Dimension != dims:
		return fmt.Errorf("%w: manifest dimension %d, index %d", domain.ErrIndexCorruption, m.Dimension, dims)
	}

	return x.cache.Verify(ctx)
}

// Reset drops every entry and returns the index to the configured size.
func (x *vectorIndex) Reset(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, err := x.store.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	x.cache = memory.NewVectorIndex(x.configured)
	x.damaged = nil
	return x.writeManifest()
}

// Close is a no-op; the Store owns the connection.
func (x *vectorIndex) Close() error {
	return nil
}

func (x *vectorIndex) manifestPath() string {
	return filepath.Join(x.store.dataDir, manifestFilename)
}

// writeManifest must be called with mu held.
func (x *vectorIndex) writeManifest() error {
	n, _ := x.cache.Count(context.Background())
	data, err := json.MarshalIndent(manifest{
		Dimension: x.cache.Dimensions(),
		Model:     x.model,
		Entries:   n,
		UpdatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling manifest: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves half a manifest.
	tmp := x.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, x.manifestPath()); err != nil {
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

func (x *vectorIndex) readManifest() (manifest, error) {
	var m manifest
	data, err := os.ReadFile(x.manifestPath())
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func scanEntry(row rowScanner) (domain.IndexEntry, error) {
	var c domain.Chunk
	var metadataJSON string
	var blob []byte

	if err := row.Scan(&c.ID, &c.DocumentID, &c.Position, &c.Start, &c.End, &c.Content,
		&metadataJSON, &blob); err != nil {
		return domain.IndexEntry{}, fmt.Errorf("scanning chunk: %w", err)
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return domain.IndexEntry{}, fmt.Errorf("%w: metadata for %s: %v", domain.ErrIndexCorruption, c.ID, err)
		}
	}
	vec, err := decodeVector(blob)
	if err != nil {
		return domain.IndexEntry{}, fmt.Errorf("%w: chunk %s: %v", domain.ErrIndexCorruption, c.ID, err)
	}
	return domain.IndexEntry{Chunk: c, Vector: vec}, nil
}
