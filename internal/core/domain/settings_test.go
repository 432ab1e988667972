package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{name: "openai is valid", provider: AIProviderOpenAI, expected: true},
		{name: "anthropic is valid", provider: AIProviderAnthropic, expected: true},
		{name: "gemini is valid", provider: AIProviderGemini, expected: true},
		{name: "ollama is valid", provider: AIProviderOllama, expected: true},
		{name: "local is valid", provider: AIProviderLocal, expected: true},
		{name: "empty string is invalid", provider: AIProvider(""), expected: false},
		{name: "unknown is invalid", provider: AIProvider("cohere"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestProviderSettings_IsConfigured(t *testing.T) {
	assert.False(t, ProviderSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, ProviderSettings{Provider: AIProviderOpenAI, APIKey: "sk"}.IsConfigured())
	assert.True(t, ProviderSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.True(t, ProviderSettings{Provider: AIProviderLocal}.IsConfigured())
	assert.False(t, ProviderSettings{Provider: "nope"}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	s := DefaultAppSettings()

	assert.Equal(t, 500, s.Chunking.Size)
	assert.Equal(t, 50, s.Chunking.Overlap)
	assert.Equal(t, 5, s.Retrieval.K)
	assert.False(t, s.Chunking.Dedupe, "dedupe is opt-in")
	assert.True(t, s.Retrieval.Diversity)
	assert.InDelta(t, 0.5, s.Retrieval.Lambda, 1e-9)
	assert.Equal(t, 100, s.Cache.Capacity)
	assert.Equal(t, 2, s.Embedding.Retries)
	require.NoError(t, s.Validate())
}

func TestAppSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppSettings)
	}{
		{name: "overlap equal to size", modify: func(s *AppSettings) { s.Chunking.Overlap = s.Chunking.Size }},
		{name: "overlap above size", modify: func(s *AppSettings) { s.Chunking.Overlap = 600 }},
		{name: "negative overlap", modify: func(s *AppSettings) { s.Chunking.Overlap = -1 }},
		{name: "zero size", modify: func(s *AppSettings) { s.Chunking.Size = 0 }},
		{name: "zero k", modify: func(s *AppSettings) { s.Retrieval.K = 0 }},
		{name: "lambda above one", modify: func(s *AppSettings) { s.Retrieval.Lambda = 1.5 }},
		{name: "zero cache capacity", modify: func(s *AppSettings) { s.Cache.Capacity = 0 }},
		{name: "zero ttl", modify: func(s *AppSettings) { s.Cache.TTL = 0 }},
		{name: "unknown provider", modify: func(s *AppSettings) {
			s.LLM.Providers = []ProviderSettings{{Provider: "mystery"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultAppSettings()
			tt.modify(&s)
			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
