package driven

import "github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"

// TraceSink receives observability records.
// Emit must not block the caller; sinks drop records they cannot accept.
type TraceSink interface {
	Emit(record domain.TraceRecord)
}
