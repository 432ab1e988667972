package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// GenerateOutcome is the result of walking the LLM chain.
type GenerateOutcome struct {
	Text string

	// Provider is the name of the provider that answered.
	Provider string

	// Position is the provider's index in the chain; 0 is the primary.
	Position int

	// Failures lists the providers that failed before Provider answered.
	Failures []*domain.ProviderError
}

// Degraded is true when a fallback provider produced the text.
func (o *GenerateOutcome) Degraded() bool {
	return o.Position > 0
}

// LLMChain tries LLM providers in order with a per-call timeout. The first
// non-empty response wins.
type LLMChain struct {
	providers   []driven.LLMProvider
	timeout     time.Duration
	maxTokens   int
	temperature float64
}

// NewLLMChain creates a chain. An empty chain is valid; Generate then
// always fails with domain.ErrLLMUnavailable.
func NewLLMChain(providers []driven.LLMProvider, settings domain.LLMSettings) *LLMChain {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultAppSettings().LLM.Timeout
	}
	return &LLMChain{
		providers:   providers,
		timeout:     timeout,
		maxTokens:   settings.MaxTokens,
		temperature: settings.Temperature,
	}
}

// Len returns the number of providers.
func (c *LLMChain) Len() int {
	return len(c.providers)
}

// Providers returns the provider names in chain order.
func (c *LLMChain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name
	}
	return names
}

// Generate sends the same prompt to each provider until one answers.
// When all fail the returned outcome still lists every failure, and the
// error wraps domain.ErrLLMUnavailable.
func (c *LLMChain) Generate(ctx context.Context, prompt, system string) (*GenerateOutcome, error) {
	out := &GenerateOutcome{Position: -1}
	opts := driven.GenerateOptions{System: system, MaxTokens: c.maxTokens, Temperature: c.temperature}

	for i, p := range c.providers {
		text, err := c.call(ctx, p, prompt, opts)
		if err == nil {
			out.Text, out.Provider, out.Position = text, p.Name, i
			if i > 0 {
				logger.Warn("Answer generated by fallback provider %s after %d failure(s)", p.Name, len(out.Failures))
			}
			return out, nil
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Failures = append(out.Failures, domain.NewProviderError(p.Name, "generate", err))
		logger.Warn("LLM provider %s failed: %v", p.Name, err)
	}

	errs := []error{domain.ErrLLMUnavailable}
	for _, f := range out.Failures {
		errs = append(errs, f)
	}
	return out, errors.Join(errs...)
}

func (c *LLMChain) call(ctx context.Context, p driven.LLMProvider, prompt string, opts driven.GenerateOptions) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := p.Service.Generate(callCtx, prompt, opts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
		}
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", domain.ErrProviderUnavailable)
	}
	return text, nil
}
