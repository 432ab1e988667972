package domain

import "time"

// TraceKind distinguishes trace records.
type TraceKind string

// Trace kinds.
const (
	TraceQuery  TraceKind = "query"
	TraceIngest TraceKind = "ingest"
)

// TraceRecord is a structured observability record emitted per call.
type TraceRecord struct {
	ID                 string        `json:"id"`
	Kind               TraceKind     `json:"kind"`
	Subject            string        `json:"subject"`
	Status             string        `json:"status"`
	LLMProvider        string        `json:"llm_provider,omitempty"`
	EmbeddingProviders []string      `json:"embedding_providers,omitempty"`
	FallbackTriggered  bool          `json:"fallback_triggered"`
	Cached             bool          `json:"cached,omitempty"`
	Total              time.Duration `json:"total_ns"`
	Retrieval          time.Duration `json:"retrieval_ns,omitempty"`
	Generation         time.Duration `json:"generation_ns,omitempty"`
	Error              string        `json:"error,omitempty"`
	Timestamp          time.Time     `json:"timestamp"`
}
