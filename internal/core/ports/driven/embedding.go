// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// EmbeddingService turns chunk and query text into vectors. The adapters
// are OpenAI, Gemini, Ollama and the offline hashing embedder; services in
// one fallback chain must agree on Dimensions.
type EmbeddingService interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length; it must equal the index's.
	Dimensions() int

	// ModelName is recorded in traces and stats.
	ModelName() string

	// Ping makes the cheapest request that proves the provider answers.
	Ping(ctx context.Context) error

	Close() error
}

// EmbeddingProvider pairs a service with the provider name reported in
// outcomes and traces.
type EmbeddingProvider struct {
	Name    string
	Service EmbeddingService
}
