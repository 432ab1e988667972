package services

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// Ensure AskService implements the interface.
var _ driving.AskService = (*AskService)(nil)

// qualityWindow is how many recent answers Quality averages over.
const qualityWindow = 10

// AskService runs the query pipeline: cache, analysis, retrieval, composition.
type AskService struct {
	analyzer  *QueryAnalyzer
	embedder  *FallbackEmbedder
	index     driven.VectorIndex
	composer  *AnswerComposer
	retrieval domain.RetrievalSettings
	cache     driven.QueryCache
	trace     driven.TraceSink

	mu      sync.Mutex
	recent  []domain.RetrievalMetrics
	flags   []bool // degraded, parallel to recent
	queries int
	hits    int
}

// NewAskService creates the query orchestrator.
func NewAskService(
	analyzer *QueryAnalyzer,
	embedder *FallbackEmbedder,
	index driven.VectorIndex,
	composer *AnswerComposer,
	retrieval domain.RetrievalSettings,
) *AskService {
	return &AskService{
		analyzer:  analyzer,
		embedder:  embedder,
		index:     index,
		composer:  composer,
		retrieval: retrieval,
	}
}

// SetCache sets the answer cache. A nil cache disables caching.
func (s *AskService) SetCache(cache driven.QueryCache) {
	s.cache = cache
}

// SetTraceSink sets the sink receiving one record per question.
func (s *AskService) SetTraceSink(sink driven.TraceSink) {
	s.trace = sink
}

// Ask answers one question.
func (s *AskService) Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error) {
	start := time.Now()

	q, err := s.analyzer.Sanitize(question)
	if err != nil {
		s.emitError(question, start, err)
		return nil, err
	}
	if opts.Language != "" && !opts.Language.IsValid() {
		err := fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidInput, opts.Language)
		s.emitError(q, start, err)
		return nil, err
	}
	if opts.K < 0 {
		err := fmt.Errorf("%w: k must not be negative", domain.ErrInvalidInput)
		s.emitError(q, start, err)
		return nil, err
	}

	k := s.retrieval.K
	if opts.K > 0 {
		k = opts.K
	}
	diversity := s.retrieval.Diversity
	if opts.Diversity != nil {
		diversity = *opts.Diversity
	}
	key := domain.CacheKey(q, opts, k, diversity)

	if answer := s.lookup(ctx, key); answer != nil {
		answer.Cached = true
		answer.Metrics.QueryTime = round3(time.Since(start).Seconds())
		logger.Debug("Cache hit for %q", q)
		s.record(answer)
		s.emit(domain.TraceRecord{
			Kind:              domain.TraceQuery,
			Subject:           subject(q),
			Status:            domain.StatusSuccess,
			LLMProvider:       answer.Provider,
			FallbackTriggered: answer.Degraded,
			Cached:            true,
			Total:             time.Since(start),
		})
		return answer, nil
	}

	logger.Section("Ask")
	analysis, err := s.analyzer.Analyze(q)
	if err != nil {
		s.emitError(q, start, err)
		return nil, err
	}
	if opts.Language != "" && opts.Language != analysis.Language {
		analysis.Language = opts.Language
		analysis.Suggestions = suggest(analysis.OriginalQuery, analysis.Intent, opts.Language)
	}
	logger.Debug("Intent %s, language %s, keywords %v, confidence %.3f",
		analysis.Intent, analysis.Language, analysis.Keywords, analysis.Confidence)

	retrievalStart := time.Now()
	retrieval, served, err := s.retrieve(ctx, analysis, k, diversity)
	retrievalTime := time.Since(retrievalStart)
	if err != nil {
		err = fmt.Errorf("retrieval: %w", err)
		s.emitError(q, start, err)
		return nil, err
	}
	logger.Debug("Retrieved %d chunks in %s", len(retrieval.Chunks), retrievalTime.Round(time.Millisecond))

	answer, err := s.composer.Compose(ctx, analysis, retrieval)
	if err != nil {
		s.emitError(q, start, err)
		return nil, err
	}
	answer.Metrics.RetrievalTime = round3(retrievalTime.Seconds())
	answer.Metrics.QueryTime = round3(time.Since(start).Seconds())

	if answer.State == domain.StateSucceeded {
		s.store(ctx, key, answer)
	}
	s.record(answer)

	s.emit(domain.TraceRecord{
		Kind:               domain.TraceQuery,
		Subject:            subject(q),
		Status:             answer.Status,
		LLMProvider:        answer.Provider,
		EmbeddingProviders: served,
		FallbackTriggered:  answer.Degraded,
		Total:              time.Since(start),
		Retrieval:          retrievalTime,
		Generation:         time.Duration(answer.Metrics.GenerationTime * float64(time.Second)),
	})
	return answer, nil
}

// retrieve embeds the enhanced query and searches the index. An empty
// index skips embedding entirely.
func (s *AskService) retrieve(
	ctx context.Context, analysis *domain.QueryAnalysis, k int, diversity bool,
) (Retrieval, []string, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return Retrieval{}, nil, err
	}
	if n == 0 {
		logger.Debug("Index is empty")
		return Retrieval{}, nil, nil
	}

	outcome, err := s.embedder.EmbedWithOutcome(ctx, []string{analysis.EnhancedQuery})
	if err != nil {
		return Retrieval{}, nil, err
	}

	chunks, err := s.index.Search(ctx, outcome.Vectors[0], domain.SearchParams{
		K:         k,
		FetchK:    max(s.retrieval.FetchK, k),
		Diversity: diversity,
		Lambda:    s.retrieval.Lambda,
	})
	if err != nil {
		return Retrieval{}, nil, err
	}
	return Retrieval{Chunks: chunks, Degraded: outcome.Degraded}, outcome.ServedBy(), nil
}

// lookup returns a private copy of a cached answer, or nil on a miss.
// Cache failures are treated as misses.
func (s *AskService) lookup(ctx context.Context, key string) *domain.Answer {
	if s.cache == nil {
		return nil
	}
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("Cache lookup failed, bypassing cache: %v", err)
		return nil
	}
	if !ok {
		return nil
	}
	return entry.Answer.Clone()
}

func (s *AskService) store(ctx context.Context, key string, answer *domain.Answer) {
	if s.cache == nil {
		return
	}
	entry := domain.CacheEntry{Answer: *answer.Clone(), CreatedAt: time.Now().UTC()}
	if err := s.cache.Put(ctx, key, entry); err != nil {
		logger.Warn("Cache write failed: %v", err)
	}
}

// ==================== Quality ====================

func (s *AskService) record(a *domain.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	if a.Cached {
		s.hits++
	}
	s.recent = append(s.recent, a.Metrics)
	s.flags = append(s.flags, a.Degraded)
	if len(s.recent) > qualityWindow {
		s.recent = s.recent[1:]
		s.flags = s.flags[1:]
	}
}

// Quality averages the metrics of the most recent answers. CacheHitRate
// covers every answer since startup.
func (s *AskService) Quality() domain.QualitySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := domain.QualitySummary{Queries: s.queries}
	if len(s.recent) == 0 {
		return out
	}

	var degraded int
	for i, m := range s.recent {
		out.AvgQueryTime += m.QueryTime
		out.AvgRelevance += m.RelevanceScore
		out.AvgConfidence += m.ConfidenceScore
		out.AvgSources += float64(m.SourceCount)
		if s.flags[i] {
			degraded++
		}
	}
	n := float64(len(s.recent))
	out.AvgQueryTime = round3(out.AvgQueryTime / n)
	out.AvgRelevance = round3(out.AvgRelevance / n)
	out.AvgConfidence = round3(out.AvgConfidence / n)
	out.AvgSources = round3(out.AvgSources / n)
	out.DegradedRate = round3(float64(degraded) / n)
	out.CacheHitRate = round3(float64(s.hits) / float64(s.queries))
	return out
}

// ==================== Tracing ====================

func (s *AskService) emit(rec domain.TraceRecord) {
	if s.trace != nil {
		s.trace.Emit(rec)
	}
}

func (s *AskService) emitError(q string, start time.Time, err error) {
	s.emit(domain.TraceRecord{
		Kind:    domain.TraceQuery,
		Subject: subject(q),
		Status:  domain.StatusError,
		Total:   time.Since(start),
		Error:   err.Error(),
	})
}

// subject shortens a query for trace records.
func subject(q string) string {
	const limit = 80
	if utf8.RuneCountInString(q) <= limit {
		return q
	}
	return string([]rune(q)[:limit]) + "…"
}
