package domain

import (
	"fmt"
	"time"
)

// AnswerState tracks an answer through the query pipeline.
type AnswerState string

// Answer states.
const (
	StateNotStarted       AnswerState = "not_started"
	StateRetrieving       AnswerState = "retrieving"
	StateGenerating       AnswerState = "generating"
	StateSucceeded        AnswerState = "succeeded"
	StateDegradedFallback AnswerState = "degraded_fallback"
	StateFailed           AnswerState = "failed"
)

// IsTerminal returns true for Succeeded, DegradedFallback and Failed.
func (s AnswerState) IsTerminal() bool {
	return s == StateSucceeded || s == StateDegradedFallback || s == StateFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s AnswerState) CanTransitionTo(next AnswerState) bool {
	switch s {
	case StateNotStarted:
		return next == StateRetrieving || next == StateFailed
	case StateRetrieving:
		return next == StateGenerating || next == StateFailed
	case StateGenerating:
		return next.IsTerminal()
	default:
		return false
	}
}

// Source is one cited chunk.
type Source struct {
	Filename string  `json:"filename"`
	Excerpt  string  `json:"excerpt"`
	Score    float64 `json:"score"`
	Page     int     `json:"page,omitempty"`
	Sheet    string  `json:"sheet,omitempty"`
	Row      int     `json:"row,omitempty"`
	ChunkID  string  `json:"chunk_id,omitempty"`
}

// Citation renders where the source came from, e.g. "policy.pdf p.3" or
// "rates.xlsx [Premiums] row 12".
func (s Source) Citation() string {
	c := s.Filename
	if s.Sheet != "" {
		c += fmt.Sprintf(" [%s]", s.Sheet)
	}
	if s.Page > 0 {
		c += fmt.Sprintf(" p.%d", s.Page)
	}
	if s.Row > 0 {
		c += fmt.Sprintf(" row %d", s.Row)
	}
	return c
}

// RetrievalMetrics is the per-query metrics record. Times are in seconds.
type RetrievalMetrics struct {
	QueryTime       float64 `json:"query_time"`
	RetrievalTime   float64 `json:"retrieval_time"`
	GenerationTime  float64 `json:"generation_time"`
	TokenCount      int     `json:"token_count"`
	SourceCount     int     `json:"source_count"`
	RelevanceScore  float64 `json:"relevance_score"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Answer is the query boundary response.
type Answer struct {
	Status      string           `json:"status"`
	Question    string           `json:"question"`
	Text        string           `json:"answer"`
	Sources     []Source         `json:"sources"`
	Metrics     RetrievalMetrics `json:"metrics"`
	State       AnswerState      `json:"state"`
	Degraded    bool             `json:"degraded"`
	Provider    string           `json:"provider,omitempty"`
	Cached      bool             `json:"cached"`
	Language    Language         `json:"language,omitempty"`
	Intent      Intent           `json:"intent,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// Clone returns a deep copy so cached answers cannot be mutated by callers.
func (a *Answer) Clone() *Answer {
	if a == nil {
		return nil
	}
	c := *a
	c.Sources = append([]Source(nil), a.Sources...)
	c.Suggestions = append([]string(nil), a.Suggestions...)
	if c.Sources == nil {
		c.Sources = []Source{}
	}
	return &c
}

// CacheEntry is a memoised answer.
type CacheEntry struct {
	Answer    Answer    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// QualitySummary aggregates metrics over recent queries.
type QualitySummary struct {
	Queries       int     `json:"queries"`
	AvgQueryTime  float64 `json:"avg_query_time"`
	AvgRelevance  float64 `json:"avg_relevance"`
	AvgConfidence float64 `json:"avg_confidence"`
	AvgSources    float64 `json:"avg_sources"`
	CacheHitRate  float64 `json:"cache_hit_rate"`
	DegradedRate  float64 `json:"degraded_rate"`
}
