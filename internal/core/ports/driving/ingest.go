package driving

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// IngestionService loads, chunks, embeds and indexes files.
type IngestionService interface {
	// Ingest indexes one file. It is all-or-nothing: on failure no chunk
	// of the file remains indexed. Re-ingesting a filename replaces it.
	Ingest(ctx context.Context, path string) (*domain.IngestResult, error)

	// Delete removes a document and all its chunks, returning the number
	// of chunks removed. Returns domain.ErrNotFound for unknown documents.
	Delete(ctx context.Context, documentID string) (int, error)

	// List returns a summary of every document.
	List(ctx context.Context) ([]domain.DocumentSummary, error)

	// Supports reports whether the file's format can be ingested.
	Supports(path string) bool
}

// ManagementService is the management boundary.
type ManagementService interface {
	// Stats summarises the corpus.
	Stats(ctx context.Context) (*domain.IndexStats, error)

	// ListFiles returns a summary of every document.
	ListFiles(ctx context.Context) ([]domain.DocumentSummary, error)

	// DeleteFile removes a document by filename.
	DeleteFile(ctx context.Context, filename string) (*domain.DeleteResult, error)

	// Rebuild re-ingests every stored document into a fresh index.
	// It is the recovery path for domain.ErrIndexCorruption.
	Rebuild(ctx context.Context) (int, error)
}
