package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

func embed(t *testing.T, s *EmbeddingService, text string) []float32 {
	t.Helper()
	vec, err := s.Embed(context.Background(), text)
	require.NoError(t, err)
	return vec
}

func TestEmbed_UnitLengthAndDeterministic(t *testing.T) {
	s := NewEmbeddingService(64)

	a := embed(t, s, "Policy X covers accidental death.")
	b := embed(t, s, "Policy X covers accidental death.")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, vectormath.Norm(a), 1e-6)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	s := NewEmbeddingService(DefaultDimensions)

	query := embed(t, s, "What does Policy X cover?")
	related := embed(t, s, "Policy X covers accidental death and disability.")
	unrelated := embed(t, s, "Quarterly premium schedules for marine freight.")

	assert.Greater(t, vectormath.Cosine(query, related), vectormath.Cosine(query, unrelated))
	assert.Greater(t, vectormath.Cosine(query, related), 0.3)
}

func TestEmbed_Thai(t *testing.T) {
	s := NewEmbeddingService(DefaultDimensions)

	query := embed(t, s, "ประกันสุขภาพคุ้มครองอะไรบ้าง")
	related := embed(t, s, "แผนประกันสุขภาพนี้คุ้มครองค่ารักษาพยาบาล")
	unrelated := embed(t, s, "Quarterly premium schedules for marine freight.")

	assert.Greater(t, vectormath.Cosine(query, related), vectormath.Cosine(query, unrelated))
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	s := NewEmbeddingService(8)

	vec := embed(t, s, "  ... ")
	assert.Equal(t, make([]float32, 8), vec)
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbeddingService(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedBatch(t *testing.T) {
	s := NewEmbeddingService(0)
	assert.Equal(t, DefaultDimensions, s.Dimensions())
	assert.Equal(t, ModelName, s.ModelName())

	vecs, err := s.EmbedBatch(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, embed(t, s, "two"), vecs[1])
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"covers":   "cover",
		"policies": "policy",
		"claimed":  "claim",
		"paying":   "pay",
		"class":    "class",
		"is":       "is",
	}
	for in, want := range tests {
		assert.Equal(t, want, stem(in), in)
	}
}
