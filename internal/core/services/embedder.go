package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

// Ensure FallbackEmbedder implements the interface.
var _ driven.EmbeddingService = (*FallbackEmbedder)(nil)

// defaultRetryDelay is the pause before the first retry; it doubles per retry.
const defaultRetryDelay = 250 * time.Millisecond

// EmbedOutcome is the result of embedding through the fallback chain.
type EmbedOutcome struct {
	// Vectors are L2-normalised, one per input text.
	Vectors [][]float32

	// Providers names the provider that served each batch, in order.
	Providers []string

	// Failures lists every failed provider call, including retries.
	Failures []*domain.ProviderError

	// Degraded is true when any batch was served by a fallback provider.
	Degraded bool
}

// ServedBy returns the distinct providers that served batches, in order.
func (o *EmbedOutcome) ServedBy() []string {
	var out []string
	for _, p := range o.Providers {
		if len(out) == 0 || out[len(out)-1] != p {
			out = append(out, p)
		}
	}
	return out
}

// FallbackEmbedder embeds through an ordered provider chain. The primary is
// retried before the chain moves on; once it has moved on it stays on the
// fallback for the rest of the input.
type FallbackEmbedder struct {
	providers  []driven.EmbeddingProvider
	dimensions int
	retries    int
	timeout    time.Duration
	batchSize  int
	retryDelay time.Duration
}

// NewFallbackEmbedder validates the chain. Every provider must produce
// settings.Dimensions-sized vectors.
func NewFallbackEmbedder(providers []driven.EmbeddingProvider, settings domain.EmbeddingSettings) (*FallbackEmbedder, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}

	dims := settings.Dimensions
	if dims <= 0 {
		dims = providers[0].Service.Dimensions()
	}
	for _, p := range providers {
		if d := p.Service.Dimensions(); d != dims {
			return nil, fmt.Errorf("%w: provider %s produces %d dimensions, expected %d",
				domain.ErrDimensionMismatch, p.Name, d, dims)
		}
	}

	batch := settings.BatchSize
	if batch <= 0 {
		batch = domain.DefaultAppSettings().Embedding.BatchSize
	}
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultAppSettings().Embedding.Timeout
	}

	return &FallbackEmbedder{
		providers:  providers,
		dimensions: dims,
		retries:    max(settings.Retries, 0),
		timeout:    timeout,
		batchSize:  batch,
		retryDelay: defaultRetryDelay,
	}, nil
}

// SetRetryDelay changes the pause before retries.
func (e *FallbackEmbedder) SetRetryDelay(d time.Duration) {
	e.retryDelay = d
}

// Providers returns the provider names in chain order.
func (e *FallbackEmbedder) Providers() []string {
	names := make([]string, len(e.providers))
	for i, p := range e.providers {
		names[i] = p.Name
	}
	return names
}

// EmbedWithOutcome embeds texts in batches and reports which provider
// served each batch. It fails with domain.ErrEmbeddingUnavailable only when
// every provider has failed for some batch.
func (e *FallbackEmbedder) EmbedWithOutcome(ctx context.Context, texts []string) (*EmbedOutcome, error) {
	out := &EmbedOutcome{Vectors: make([][]float32, 0, len(texts))}
	current := 0

	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch := texts[start:end]

		for {
			if current >= len(e.providers) {
				errs := make([]error, 0, len(out.Failures)+1)
				errs = append(errs, domain.ErrEmbeddingUnavailable)
				for _, f := range out.Failures {
					errs = append(errs, f)
				}
				return out, errors.Join(errs...)
			}

			p := e.providers[current]
			attempts := 1
			if current == 0 {
				attempts += e.retries
			}

			vectors, err := e.tryProvider(ctx, p, batch, attempts, out)
			if err == nil {
				out.Vectors = append(out.Vectors, vectors...)
				out.Providers = append(out.Providers, p.Name)
				if current > 0 {
					out.Degraded = true
				}
				logger.Info("Embedding batch %d-%d served by %s", start, end, p.Name)
				break
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}

			current++
			if current < len(e.providers) {
				logger.Warn("Embedding provider %s failed, falling back to %s", p.Name, e.providers[current].Name)
			}
		}
	}
	return out, nil
}

// tryProvider calls p up to attempts times, recording failures on out.
func (e *FallbackEmbedder) tryProvider(
	ctx context.Context, p driven.EmbeddingProvider, batch []string, attempts int, out *EmbedOutcome,
) ([][]float32, error) {
	var lastErr error
	delay := e.retryDelay

	for i := 0; i < attempts; i++ {
		if i > 0 {
			logger.Debug("Retrying %s (attempt %d/%d)", p.Name, i+1, attempts)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		vectors, err := e.call(ctx, p, batch)
		if err == nil {
			return vectors, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		pe := domain.NewProviderError(p.Name, "embed", err)
		out.Failures = append(out.Failures, pe)
		lastErr = pe
		logger.Debug("Embedding via %s failed: %v", p.Name, err)
		if errors.Is(err, domain.ErrDimensionMismatch) {
			break
		}
	}
	return nil, lastErr
}

// call makes one bounded provider call and checks its output.
func (e *FallbackEmbedder) call(ctx context.Context, p driven.EmbeddingProvider, batch []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := p.Service.EmbedBatch(callCtx, batch)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
		}
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrProviderUnavailable, len(vectors), len(batch))
	}

	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != e.dimensions {
			return nil, fmt.Errorf("%w: got %d dimensions, expected %d", domain.ErrDimensionMismatch, len(v), e.dimensions)
		}
		out[i] = vectormath.Normalize(v)
	}
	return out, nil
}

// Embed embeds a single text.
func (e *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts through the chain, discarding the outcome.
func (e *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := e.EmbedWithOutcome(ctx, texts)
	if err != nil {
		return nil, err
	}
	return out.Vectors, nil
}

// Dimensions returns the shared vector size.
func (e *FallbackEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the primary provider's model.
func (e *FallbackEmbedder) ModelName() string {
	return e.providers[0].Service.ModelName()
}

// Ping succeeds if any provider answers.
func (e *FallbackEmbedder) Ping(ctx context.Context) error {
	var errs []error
	for _, p := range e.providers {
		err := p.Service.Ping(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, domain.NewProviderError(p.Name, "ping", err))
	}
	return errors.Join(append([]error{domain.ErrEmbeddingUnavailable}, errs...)...)
}

// Close closes every provider.
func (e *FallbackEmbedder) Close() error {
	var errs []error
	for _, p := range e.providers {
		errs = append(errs, p.Service.Close())
	}
	return errors.Join(errs...)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
