package driven

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// Loader reads one family of file formats into text segments.
// Loaders only read the file; they never touch the index or cache.
type Loader interface {
	// Name identifies the loader in logs.
	Name() string

	// SupportedExtensions returns the lower-case extensions, without dots,
	// this loader handles.
	SupportedExtensions() []string

	// Priority breaks ties when several loaders claim an extension.
	// Higher wins.
	Priority() int

	// Load extracts segments from the file.
	// Returns domain.ErrCorruptFile when no text can be extracted.
	Load(ctx context.Context, path string) ([]domain.Segment, error)
}

// LoaderRegistry selects the loader for a file.
type LoaderRegistry interface {
	// Register adds a loader.
	Register(loader Loader)

	// For returns the loader for path's extension.
	// Returns domain.ErrUnsupportedFormat when none matches.
	For(path string) (Loader, error)

	// Supports reports whether path's extension has a loader.
	Supports(path string) bool

	// Extensions returns every supported extension.
	Extensions() []string
}
