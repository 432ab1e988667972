// Package gemini provides an embedding service adapter for Google's
// embedding models over the Generative Language REST API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/googleai"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel      = "text-embedding-004"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768

	// maxBatch is the API limit on requests per batchEmbedContents call.
	maxBatch = 100

	taskType = "RETRIEVAL_DOCUMENT"
)

// Config holds configuration for the Gemini embedding service.
type Config struct {
	// APIKey is the Google AI Studio API key (required).
	APIKey string

	// Model is the embedding model to use (default: text-embedding-004).
	Model string

	// Endpoint overrides the API root.
	Endpoint string

	// Timeout bounds each API call (default: 30s).
	Timeout time.Duration

	// Dimensions is requested as outputDimensionality (default: 768).
	Dimensions int

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

// EmbeddingService generates embeddings using Gemini embedding models.
type EmbeddingService struct {
	client     *googleai.Client
	model      string
	dimensions int
}

type embedRequest struct {
	Model                string            `json:"model"`
	Content              *googleai.Content `json:"content"`
	TaskType             string            `json:"taskType"`
	OutputDimensionality int               `json:"outputDimensionality"`
}

type batchRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

// NewEmbeddingService creates a new Gemini embedding service.
func NewEmbeddingService(_ context.Context, cfg Config) (*EmbeddingService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	client, err := googleai.NewClient(googleai.Config{
		APIKey:            cfg.APIKey,
		Endpoint:          cfg.Endpoint,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	return &EmbeddingService{
		client:     client,
		model:      googleai.ModelPath(cfg.Model),
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts with batchEmbedContents, splitting at the API limit.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		vecs, err := s.embedBatch(ctx, texts[start:min(start+maxBatch, len(texts))])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (s *EmbeddingService) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	req := batchRequest{Requests: make([]embedRequest, len(texts))}
	for i, text := range texts {
		req.Requests[i] = embedRequest{
			Model:                s.model,
			Content:              googleai.TextContent("", text),
			TaskType:             taskType,
			OutputDimensionality: s.dimensions,
		}
	}

	var resp batchResponse
	if err := s.client.Call(ctx, s.model, "batchEmbedContents", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if len(emb.Values) < s.dimensions {
			return nil, fmt.Errorf("gemini: got %d dimensions, want %d: %w",
				len(emb.Values), s.dimensions, domain.ErrDimensionMismatch)
		}
		vecs[i] = vectormath.Project(vectormath.FromFloat64(emb.Values), s.dimensions)
	}
	return vecs, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the bare model name.
func (s *EmbeddingService) ModelName() string {
	return strings.TrimPrefix(s.model, "models/")
}

// Ping fetches the model's metadata.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if err := s.client.Model(ctx, s.model); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
