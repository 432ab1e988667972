package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// Ensure ManagementService implements the interface.
var _ driving.ManagementService = (*ManagementService)(nil)

// ManagementService reports on and maintains the corpus.
type ManagementService struct {
	ingestion *IngestionService
	index     driven.VectorIndex
	docs      driven.DocumentStore
}

// NewManagementService creates a management service over the same stores
// the ingestion service writes.
func NewManagementService(ingestion *IngestionService, index driven.VectorIndex, docs driven.DocumentStore) *ManagementService {
	return &ManagementService{ingestion: ingestion, index: index, docs: docs}
}

// Stats summarises the corpus.
func (s *ManagementService) Stats(ctx context.Context) (*domain.IndexStats, error) {
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	chunks, err := s.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	size, err := s.index.SizeBytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("index size: %w", err)
	}
	return &domain.IndexStats{TotalFiles: len(docs), TotalChunks: chunks, IndexSize: size}, nil
}

// ListFiles returns every document.
func (s *ManagementService) ListFiles(ctx context.Context) ([]domain.DocumentSummary, error) {
	return s.ingestion.List(ctx)
}

// DeleteFile removes a document by filename. A path is reduced to its
// base name.
func (s *ManagementService) DeleteFile(ctx context.Context, filename string) (*domain.DeleteResult, error) {
	removed, err := s.ingestion.Delete(ctx, domain.DocumentIDFromPath(filename))
	if err != nil {
		return nil, err
	}
	return &domain.DeleteResult{Status: domain.StatusSuccess, ChunksRemoved: removed}, nil
}

// Rebuild clears the index and re-ingests every stored document from the
// path it was ingested from. Documents whose file is gone are dropped.
// It returns the number of documents re-indexed.
func (s *ManagementService) Rebuild(ctx context.Context) (int, error) {
	logger.Section("Rebuild")
	docs, err := s.docs.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	if err := s.index.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}

	var (
		rebuilt int
		errs    []error
	)
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if _, err := os.Stat(d.Path); errors.Is(err, os.ErrNotExist) {
			logger.Warn("Dropping %s: %s no longer exists", d.ID, d.Path)
			if err := s.docs.DeleteDocument(ctx, d.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
				errs = append(errs, fmt.Errorf("drop %s: %w", d.ID, err))
			}
			continue
		}
		if _, err := s.ingestion.Ingest(ctx, d.Path); err != nil {
			errs = append(errs, fmt.Errorf("re-ingest %s: %w", d.ID, err))
			continue
		}
		rebuilt++
	}

	logger.Info("Rebuilt %d of %d documents", rebuilt, len(docs))
	return rebuilt, errors.Join(errs...)
}
