// Package local provides an offline embedding service based on feature
// hashing. It needs no network and no model files, so it serves as the
// last resort of the embedding chain and as the default in tests.
package local

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/vectormath"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions matches the default of the remote providers so the
// local embedder can stand in for them.
const DefaultDimensions = 768

// ModelName is reported for vectors produced by this package.
const ModelName = "hashing-v1"

const (
	wordWeight    = 1.0
	trigramWeight = 0.3
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+`)

// EmbeddingService hashes words and character trigrams into a fixed-size
// vector. Texts sharing vocabulary land close together; unrelated texts
// are near orthogonal.
type EmbeddingService struct {
	dimensions int
	stopwords  map[string]struct{}
}

// NewEmbeddingService creates a hashing embedder with the given vector size.
func NewEmbeddingService(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions, stopwords: defaultStopwords()}
}

// Embed generates a unit vector for text. Text without any word
// characters yields the zero vector.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc := make([]float64, s.dimensions)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if isThai(tok) {
			// No spaces between Thai words: trigrams carry most of the signal.
			s.add(acc, tok, wordWeight)
			s.addTrigrams(acc, tok, wordWeight)
			continue
		}
		if _, stop := s.stopwords[tok]; stop {
			continue
		}
		tok = stem(tok)
		s.add(acc, tok, wordWeight)
		s.addTrigrams(acc, "<"+tok+">", trigramWeight)
	}

	vec := make([]float32, s.dimensions)
	for i, v := range acc {
		vec[i] = float32(v)
	}
	return vectormath.Normalize(vec), nil
}

// EmbedBatch embeds each text in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (s *EmbeddingService) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	acc[sum%uint64(len(acc))] += sign * weight
}

func (s *EmbeddingService) addTrigrams(acc []float64, tok string, weight float64) {
	runes := []rune(tok)
	if len(runes) < 3 {
		return
	}
	// Spread the weight so long tokens don't dominate.
	w := weight / math.Sqrt(float64(len(runes)-2))
	for i := 0; i+3 <= len(runes); i++ {
		s.add(acc, string(runes[i:i+3]), w)
	}
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return ModelName
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func isThai(tok string) bool {
	for _, r := range tok {
		if unicode.Is(unicode.Thai, r) {
			return true
		}
	}
	return false
}

// stem strips common English inflections so "covers" and "cover" share a feature.
func stem(tok string) string {
	for _, suffix := range []string{"ies", "ing", "ed", "es", "s"} {
		if len(tok) > len(suffix)+2 && strings.HasSuffix(tok, suffix) {
			if suffix == "ies" {
				return tok[:len(tok)-3] + "y"
			}
			if suffix == "s" && strings.HasSuffix(tok, "ss") {
				return tok
			}
			return tok[:len(tok)-len(suffix)]
		}
	}
	return tok
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "do", "does", "for",
		"from", "how", "i", "in", "is", "it", "of", "on", "or", "that", "the",
		"this", "to", "was", "what", "when", "where", "which", "who", "why",
		"will", "with", "you", "your",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
