package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/embedding/local"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

const testDims = 64

var errProviderDown = errors.New("provider down")

// --- Mock implementations ---

// mockEmbedding embeds with the offline hashing embedder unless told to fail.
type mockEmbedding struct {
	inner *local.EmbeddingService
	dims  int

	mu        sync.Mutex
	calls     int
	failFirst int
	err       error
	delay     time.Duration
	texts     []string
}

func newMockEmbedding(dims int) *mockEmbedding {
	return &mockEmbedding{inner: local.NewEmbeddingService(testDims), dims: dims}
}

func (m *mockEmbedding) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (m *mockEmbedding) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	call := m.calls
	m.texts = append(m.texts, texts...)
	m.mu.Unlock()

	if m.delay > 0 {
		if err := sleep(ctx, m.delay); err != nil {
			return nil, err
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	if call <= m.failFirst {
		return nil, errProviderDown
	}

	vectors, err := m.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if m.dims != testDims {
		for i := range vectors {
			vectors[i] = make([]float32, m.dims)
			vectors[i][0] = 1
		}
	}
	return vectors, nil
}

func (m *mockEmbedding) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockEmbedding) Dimensions() int            { return testDims }
func (m *mockEmbedding) ModelName() string          { return "mock-embed" }
func (m *mockEmbedding) Ping(context.Context) error { return m.err }
func (m *mockEmbedding) Close() error               { return nil }

// mockLLM returns a fixed response or error.
type mockLLM struct {
	response string
	err      error
	delay    time.Duration

	mu      sync.Mutex
	calls   int
	prompt  string
	options driven.GenerateOptions
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.calls++
	m.prompt = prompt
	m.options = opts
	m.mu.Unlock()

	if m.delay > 0 {
		if err := sleep(ctx, m.delay); err != nil {
			return "", err
		}
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return m.Generate(ctx, messages[len(messages)-1].Content, driven.GenerateOptions{})
}

func (m *mockLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockLLM) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompt
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return m.err }
func (m *mockLLM) Close() error               { return nil }

// mockPrompts serves prompts from a map.
type mockPrompts map[string]string

func (m mockPrompts) Load(name string) (string, error) {
	if p, ok := m[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m mockPrompts) Reload() {}

// recordingSink collects trace records.
type recordingSink struct {
	mu      sync.Mutex
	records []domain.TraceRecord
}

func (s *recordingSink) Emit(rec domain.TraceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) Records() []domain.TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.TraceRecord(nil), s.records...)
}

// --- Helpers ---

func embeddingSettings() domain.EmbeddingSettings {
	s := domain.DefaultAppSettings().Embedding
	s.Dimensions = testDims
	s.Timeout = time.Second
	return s
}

func newTestEmbedder(t *testing.T, providers ...driven.EmbeddingProvider) *FallbackEmbedder {
	t.Helper()
	e, err := NewFallbackEmbedder(providers, embeddingSettings())
	require.NoError(t, err)
	e.SetRetryDelay(0)
	return e
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
