// Package ai builds the ordered embedding and LLM provider chains from
// resolved settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	geminiembed "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/embedding/gemini"
	localembed "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/embedding/local"
	ollamaembed "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/llm/ollama"
	openaillm "github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/llm/openai"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Chains holds the resolved provider lists, primary first.
type Chains struct {
	Embedding []driven.EmbeddingProvider
	LLM       []driven.LLMProvider

	// Warnings lists providers that were skipped and why.
	Warnings []string
}

// Close releases every provider.
func (c *Chains) Close() {
	for _, p := range c.Embedding {
		_ = p.Service.Close()
	}
	for _, p := range c.LLM {
		_ = p.Service.Close()
	}
}

// BuildChains creates every configured provider in order. Providers that
// are unconfigured or fail construction are skipped with a warning.
// An empty embedding chain is an error; an empty LLM chain is not, since
// answers then come from the extractive fallback.
func BuildChains(ctx context.Context, settings domain.AppSettings) (*Chains, error) {
	chains := &Chains{}

	for _, p := range settings.Embedding.Providers {
		if !p.IsConfigured() {
			chains.Warnings = append(chains.Warnings, fmt.Sprintf("embedding provider %s skipped: not configured", p.Provider))
			continue
		}
		svc, err := CreateEmbeddingService(ctx, p, settings.Embedding)
		if err != nil {
			if errors.Is(err, domain.ErrDimensionMismatch) {
				chains.Close()
				return nil, err
			}
			chains.Warnings = append(chains.Warnings, fmt.Sprintf("embedding provider %s skipped: %v", p.Provider, err))
			continue
		}
		chains.Embedding = append(chains.Embedding, driven.EmbeddingProvider{Name: p.Provider.String(), Service: svc})
	}

	for _, p := range settings.LLM.Providers {
		if !p.IsConfigured() {
			chains.Warnings = append(chains.Warnings, fmt.Sprintf("LLM provider %s skipped: not configured", p.Provider))
			continue
		}
		svc, err := CreateLLMService(ctx, p, settings.LLM)
		if err != nil {
			chains.Warnings = append(chains.Warnings, fmt.Sprintf("LLM provider %s skipped: %v", p.Provider, err))
			continue
		}
		chains.LLM = append(chains.LLM, driven.LLMProvider{Name: p.Provider.String(), Service: svc})
	}

	if len(chains.Embedding) == 0 {
		chains.Close()
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}
	return chains, nil
}

// CreateEmbeddingService creates the embedding adapter for one provider.
func CreateEmbeddingService(
	ctx context.Context, p domain.ProviderSettings, s domain.EmbeddingSettings,
) (driven.EmbeddingService, error) {
	switch p.Provider {
	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            p.APIKey,
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           s.Timeout,
			Dimensions:        s.Dimensions,
			RequestsPerSecond: s.RequestsPerSecond,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:            p.APIKey,
			Model:             p.Model,
			Endpoint:          p.BaseURL,
			Timeout:           s.Timeout,
			Dimensions:        s.Dimensions,
			RequestsPerSecond: s.RequestsPerSecond,
		})

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           s.Timeout,
			Dimensions:        s.Dimensions,
			RequestsPerSecond: s.RequestsPerSecond,
		}), nil

	case domain.AIProviderLocal:
		return localembed.NewEmbeddingService(s.Dimensions), nil

	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use openai, gemini, ollama or local")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", p.Provider)
	}
}

// CreateLLMService creates the LLM adapter for one provider.
func CreateLLMService(ctx context.Context, p domain.ProviderSettings, s domain.LLMSettings) (driven.LLMService, error) {
	switch p.Provider {
	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:            p.APIKey,
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           s.Timeout,
			RequestsPerSecond: s.RequestsPerSecond,
		})

	case domain.AIProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:            p.APIKey,
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           s.Timeout,
			RequestsPerSecond: s.RequestsPerSecond,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey:            p.APIKey,
			Model:             p.Model,
			Endpoint:          p.BaseURL,
			Timeout:           s.Timeout,
			RequestsPerSecond: s.RequestsPerSecond,
		})

	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:           p.BaseURL,
			Model:             p.Model,
			Timeout:           s.Timeout,
			RequestsPerSecond: s.RequestsPerSecond,
		}), nil

	case domain.AIProviderLocal:
		return nil, fmt.Errorf("local has no language model; the extractive fallback is always available")

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}

// ProviderStatus is the result of pinging one provider.
type ProviderStatus struct {
	Kind     string
	Name     string
	Model    string
	Position int
	Err      error
}

// Check pings every provider in both chains with a short timeout.
func Check(ctx context.Context, chains *Chains) []ProviderStatus {
	var out []ProviderStatus
	ping := func(kind, name, model string, pos int, pinger func(context.Context) error) {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		out = append(out, ProviderStatus{Kind: kind, Name: name, Model: model, Position: pos, Err: pinger(pctx)})
	}

	for i, p := range chains.Embedding {
		ping("embedding", p.Name, p.Service.ModelName(), i, p.Service.Ping)
	}
	for i, p := range chains.LLM {
		ping("llm", p.Name, p.Service.ModelName(), i, p.Service.Ping)
	}
	return out
}
