package driven

import (
	"context"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// QueryCache memoises answers by cache key.
// Implementations must be safe for concurrent use and bound their size.
// Failures are reported wrapped in domain.ErrCache; callers bypass the
// cache rather than failing the request.
type QueryCache interface {
	// Get returns the entry for key and whether it was found.
	Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error)

	// Put stores an entry.
	Put(ctx context.Context, key string, entry domain.CacheEntry) error

	// Purge removes every entry.
	Purge(ctx context.Context) error

	// Len returns the number of live entries.
	Len() int
}
