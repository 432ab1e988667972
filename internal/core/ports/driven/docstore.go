package driven

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// DocumentStore persists one record per ingested file, keyed by the
// document ID derived from its filename. Get and Delete wrap
// domain.ErrNotFound for unknown IDs.
type DocumentStore interface {
	// SaveDocument inserts or replaces the record with doc.ID.
	SaveDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns every record sorted by ID.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
