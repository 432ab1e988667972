package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionService coordinates loader, chunker, embedder and index for
// one file at a time.
type IngestionService struct {
	loaders  driven.LoaderRegistry
	pipeline driven.PostProcessorPipeline
	embedder *FallbackEmbedder
	index    driven.VectorIndex
	docs     driven.DocumentStore
	cache    driven.QueryCache
	trace    driven.TraceSink

	locks keyedMutex
}

// NewIngestionService creates an ingestion service.
func NewIngestionService(
	loaders driven.LoaderRegistry,
	pipeline driven.PostProcessorPipeline,
	embedder *FallbackEmbedder,
	index driven.VectorIndex,
	docs driven.DocumentStore,
) *IngestionService {
	return &IngestionService{
		loaders:  loaders,
		pipeline: pipeline,
		embedder: embedder,
		index:    index,
		docs:     docs,
	}
}

// SetCache sets the query cache purged whenever the corpus changes.
func (s *IngestionService) SetCache(cache driven.QueryCache) {
	s.cache = cache
}

// SetTraceSink sets the sink receiving one record per ingestion.
func (s *IngestionService) SetTraceSink(sink driven.TraceSink) {
	s.trace = sink
}

// Supports reports whether path has a loadable format.
func (s *IngestionService) Supports(path string) bool {
	return s.loaders.Supports(path)
}

// Ingest indexes one file, replacing any previous version of it.
func (s *IngestionService) Ingest(ctx context.Context, path string) (*domain.IngestResult, error) {
	start := time.Now()
	docID := domain.DocumentIDFromPath(path)

	unlock := s.locks.lock(docID)
	defer unlock()

	logger.Section("Ingest " + docID)
	result, err := s.ingest(ctx, path, docID)

	rec := domain.TraceRecord{
		Kind:    domain.TraceIngest,
		Subject: docID,
		Status:  domain.StatusSuccess,
		Total:   time.Since(start),
	}
	if err != nil {
		rec.Status = domain.StatusError
		rec.Error = err.Error()
		logger.Warn("Ingest of %s failed: %v", docID, err)
	} else {
		rec.EmbeddingProviders = result.EmbeddingProvider
		rec.FallbackTriggered = result.Degraded
		logger.Info("Ingested %s: %d chunks in %s", docID, result.ChunksCreated, rec.Total.Round(time.Millisecond))
	}
	s.emit(rec)

	return result, err
}

//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestionService) ingest(ctx context.Context, path, docID string) (*domain.IngestResult, error) {
	// 1. Check the file
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	// 2. Load segments
	loader, err := s.loaders.For(path)
	if err != nil {
		return nil, err
	}
	done := logger.Timed("load")
	segments, err := loader.Load(ctx, path)
	done()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", docID, err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s produced no text", domain.ErrCorruptFile, docID)
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	doc := &domain.Document{
		ID:           docID,
		Path:         absPath,
		FileType:     domain.FileTypeFromPath(path),
		SizeBytes:    info.Size(),
		SegmentCount: len(segments),
		Checksum:     checksum,
		UploadedAt:   time.Now().UTC(),
		Metadata:     map[string]any{"loader": loader.Name()},
	}

	// 3. Chunk
	chunks, err := s.pipeline.Process(ctx, doc, segments)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", docID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s produced no chunks", domain.ErrCorruptFile, docID)
	}
	logger.Debug("%s: %d segments, %d chunks", docID, len(segments), len(chunks))

	// 4. Embed
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	done = logger.Timed("embed")
	outcome, err := s.embedder.EmbedWithOutcome(ctx, texts)
	done()
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", docID, err)
	}

	// 5. Swap the document's index entries
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.IndexEntry{Chunk: c, Vector: outcome.Vectors[i]}
	}
	removed, err := s.index.ReplaceDocument(ctx, docID, entries)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", docID, err)
	}
	if removed > 0 {
		logger.Debug("Replaced %d previous chunks of %s", removed, docID)
	}

	// 6. Save the document; without it the entries would be orphans
	doc.ChunkCount = len(chunks)
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		s.rollback(docID)
		return nil, fmt.Errorf("save %s: %w", docID, err)
	}

	s.purgeCache(ctx)

	return &domain.IngestResult{
		Status:            domain.StatusSuccess,
		DocumentID:        docID,
		ChunksCreated:     len(chunks),
		Degraded:          outcome.Degraded,
		EmbeddingProvider: outcome.ServedBy(),
	}, nil
}

// rollback removes whatever is left of a document after a failed save.
// It runs on a fresh context so a cancelled request still cleans up.
func (s *IngestionService) rollback(docID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.index.DeleteByDocument(ctx, docID); err != nil {
		logger.Error("Rollback of %s index entries failed: %v", docID, err)
	}
	if err := s.docs.DeleteDocument(ctx, docID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Error("Rollback of %s record failed: %v", docID, err)
	}
	s.purgeCache(ctx)
}

// Delete removes a document and every chunk of it.
func (s *IngestionService) Delete(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("%w: empty document ID", domain.ErrInvalidInput)
	}

	unlock := s.locks.lock(documentID)
	defer unlock()

	removed, err := s.index.DeleteByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}

	err = s.docs.DeleteDocument(ctx, documentID)
	switch {
	case errors.Is(err, domain.ErrNotFound) && removed == 0:
		return 0, fmt.Errorf("%w: document %s", domain.ErrNotFound, documentID)
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn("Removed %d orphaned chunks of %s", removed, documentID)
	case err != nil:
		return removed, fmt.Errorf("delete document %s: %w", documentID, err)
	}

	s.purgeCache(ctx)
	logger.Info("Deleted %s (%d chunks)", documentID, removed)
	return removed, nil
}

// List returns every document, ordered by filename.
func (s *IngestionService) List(ctx context.Context) ([]domain.DocumentSummary, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]domain.DocumentSummary, len(docs))
	for i, d := range docs {
		out[i] = domain.SummaryOf(d)
	}
	return out, nil
}

func (s *IngestionService) purgeCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		logger.Warn("Cache purge failed: %v", err)
	}
}

func (s *IngestionService) emit(rec domain.TraceRecord) {
	if s.trace != nil {
		s.trace.Emit(rec)
	}
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ==================== Keyed Lock ====================

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
