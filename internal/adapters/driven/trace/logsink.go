package trace

import (
	"strings"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// Ensure LogSink implements the interface.
var _ driven.TraceSink = LogSink{}

// LogSink writes trace records to the verbose logger.
type LogSink struct{}

// Emit logs a one-line summary of the record.
func (LogSink) Emit(r domain.TraceRecord) {
	fill(&r)
	logger.Debug("trace %s %s %q status=%s llm=%s embed=%s fallback=%t cached=%t total=%s retrieval=%s generation=%s err=%q",
		r.ID, r.Kind, r.Subject, r.Status, r.LLMProvider, strings.Join(r.EmbeddingProviders, ","),
		r.FallbackTriggered, r.Cached, r.Total, r.Retrieval, r.Generation, r.Error)
}

// Nop discards every record.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(domain.TraceRecord) {}

// Multi fans records out to several sinks.
type Multi []driven.TraceSink

// Emit forwards r to every sink.
func (m Multi) Emit(r domain.TraceRecord) {
	fill(&r)
	for _, s := range m {
		s.Emit(r)
	}
}
