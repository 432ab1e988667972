package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrInvalidConfig indicates settings that cannot be used, such as a
	// chunk overlap not smaller than the chunk size. Raised at startup.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Ingestion Errors.

	// ErrUnsupportedFormat indicates no loader handles the file extension.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrCorruptFile indicates the loader could not extract any text.
	ErrCorruptFile = errors.New("corrupt file")

	// Query Errors.

	// ErrInvalidQuery indicates an empty or malformed query.
	// No retrieval is attempted.
	ErrInvalidQuery = errors.New("invalid query")

	// Provider Errors.

	// ErrProviderTimeout indicates an embedding or LLM call exceeded its deadline.
	ErrProviderTimeout = errors.New("provider timeout")

	// ErrProviderUnavailable indicates an embedding or LLM call failed.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrLLMUnavailable indicates every LLM provider in the chain failed
	// or none is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates every embedding provider failed
	// or none is configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates providers or stored vectors disagree
	// on the embedding dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// Storage Errors.

	// ErrIndexCorruption indicates the vector index failed its consistency
	// check. The index must be rebuilt from documents.
	ErrIndexCorruption = errors.New("index corruption")

	// ErrCache indicates a cache read or write failure.
	// Callers bypass the cache for that request.
	ErrCache = errors.New("cache error")
)

// ProviderError records which provider failed, during which operation,
// and whether the failure was a timeout or an outright error.
type ProviderError struct {
	Provider string
	Op       string
	Kind     error
	Err      error
}

// ClassifyProviderError maps a provider failure to ErrProviderTimeout
// (deadline exceeded) or ErrProviderUnavailable (anything else).
func ClassifyProviderError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrProviderTimeout) {
		return ErrProviderTimeout
	}
	return ErrProviderUnavailable
}

// NewProviderError classifies err and tags it with the provider identity.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Kind: ClassifyProviderError(err), Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v: %v", e.Provider, e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the classification and the cause to errors.Is.
func (e *ProviderError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// ErrorResponse is the structured failure shape returned to front-ends.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorResponse builds the failure shape for err.
func NewErrorResponse(err error) ErrorResponse {
	return ErrorResponse{Status: StatusError, Message: err.Error()}
}
