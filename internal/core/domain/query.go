package domain

import (
	"fmt"
	"strings"
)

// Language is a supported query/answer language.
type Language string

// Supported languages.
const (
	LanguageEnglish Language = "english"
	LanguageThai    Language = "thai"
)

// IsValid returns true if the language is supported.
func (l Language) IsValid() bool {
	return l == LanguageEnglish || l == LanguageThai
}

// ParseLanguage accepts full names and ISO codes ("th", "en").
// An empty string yields an empty Language (auto-detect).
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "en", "eng", "english":
		return LanguageEnglish, nil
	case "th", "tha", "thai":
		return LanguageThai, nil
	default:
		return "", fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, s)
	}
}

// Intent is the closed set of query intents. It selects prompt guidance.
type Intent string

// Query intents.
const (
	IntentDefinition        Intent = "definition"
	IntentComparison        Intent = "comparison"
	IntentProcedure         Intent = "procedure"
	IntentObjectionHandling Intent = "objection_handling"
	IntentProductKnowledge  Intent = "product_knowledge"
	IntentCompliance        Intent = "compliance"
	IntentFactFinding       Intent = "fact_finding"
	IntentPricing           Intent = "pricing"
	IntentBenefits          Intent = "benefits"
	IntentGeneral           Intent = "general"
)

// AllIntents returns every intent in classification order.
func AllIntents() []Intent {
	return []Intent{
		IntentObjectionHandling,
		IntentComparison,
		IntentCompliance,
		IntentFactFinding,
		IntentPricing,
		IntentBenefits,
		IntentProcedure,
		IntentProductKnowledge,
		IntentDefinition,
		IntentGeneral,
	}
}

// QueryAnalysis is derived from one raw query. It is never persisted.
type QueryAnalysis struct {
	OriginalQuery string   `json:"original_query"`
	EnhancedQuery string   `json:"enhanced_query"`
	Keywords      []string `json:"keywords"`
	Language      Language `json:"language"`
	Intent        Intent   `json:"intent"`
	Confidence    float64  `json:"confidence"`
	Suggestions   []string `json:"suggestions,omitempty"`
}

// AskOptions are the per-request options of the query boundary.
type AskOptions struct {
	// UseWebSearch is accepted for contract compatibility. The core has
	// no web search; the flag only participates in the cache key.
	UseWebSearch bool `json:"use_web_search,omitempty"`

	// Language forces the answer language; empty means auto-detect.
	Language Language `json:"language,omitempty"`

	// K overrides the configured number of retrieved chunks.
	K int `json:"k,omitempty"`

	// Diversity overrides the configured MMR setting when non-nil.
	Diversity *bool `json:"diversity,omitempty"`
}

// CacheKey builds the cache key for a sanitised query and the effective
// retrieval parameters. Every parameter that affects the answer is part
// of the key.
func CacheKey(query string, opts AskOptions, k int, diversity bool) string {
	normalised := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return fmt.Sprintf("%s|lang=%s|k=%d|mmr=%t|web=%t",
		normalised, opts.Language, k, diversity, opts.UseWebSearch)
}
