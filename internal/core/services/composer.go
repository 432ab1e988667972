package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

const (
	// excerptLength caps Source.Excerpt in runes.
	excerptLength = 200

	// extractiveSentences bounds the local fallback answer.
	extractiveSentences = 3

	// LocalProvider names the extractive fallback in answers and traces.
	LocalProvider = "local"

	// noSourcesConfidence caps confidence when nothing was retrieved.
	noSourcesConfidence = 0.2

	// fallbackPenalty is subtracted from confidence for degraded answers.
	fallbackPenalty = 0.15
)

// Built-in templates used when the prompt store cannot supply one.
const (
	builtinSystem   = "Answer only from the numbered context passages. Cite passages as [n]. If the context does not contain the answer, say so."
	builtinTemplate = "{{guidance}}\n{{language}}\n\nContext:\n{{context}}\n\nQuestion: {{question}}\n\nAnswer:"
)

var noInformation = map[domain.Language]string{
	domain.LanguageEnglish: "I couldn't find relevant information in the uploaded documents to answer this question. Try uploading related documents or rephrasing the question.",
	domain.LanguageThai:    "ไม่พบข้อมูลที่เกี่ยวข้องในเอกสารที่อัปโหลด กรุณาอัปโหลดเอกสารที่เกี่ยวข้องหรือลองถามใหม่อีกครั้ง",
}

var extractiveHeader = map[domain.Language]string{
	domain.LanguageEnglish: "The language model is unavailable. These passages from your documents are the closest match:",
	domain.LanguageThai:    "ไม่สามารถเชื่อมต่อโมเดลภาษาได้ ข้อความต่อไปนี้จากเอกสารตรงกับคำถามมากที่สุด:",
}

var languageDirective = map[domain.Language]string{
	domain.LanguageEnglish: "Answer in English.",
	domain.LanguageThai:    "Answer in Thai (ตอบเป็นภาษาไทย).",
}

// Retrieval is what the query pipeline hands to the composer.
type Retrieval struct {
	Chunks []domain.ScoredChunk

	// Degraded is true when the query embedding came from a fallback
	// provider.
	Degraded bool
}

// AnswerComposer builds a grounded prompt from retrieved chunks, walks the
// LLM chain, and falls back to an extractive answer when every provider
// fails.
type AnswerComposer struct {
	chain   *LLMChain
	prompts driven.PromptStore
}

// NewAnswerComposer creates a composer. prompts may be nil.
func NewAnswerComposer(chain *LLMChain, prompts driven.PromptStore) *AnswerComposer {
	if chain == nil {
		chain = NewLLMChain(nil, domain.LLMSettings{})
	}
	return &AnswerComposer{chain: chain, prompts: prompts}
}

// Compose answers analysis from the retrieved chunks. The returned answer
// is always in a terminal state. Errors are returned only for a cancelled
// context.
func (c *AnswerComposer) Compose(
	ctx context.Context, analysis *domain.QueryAnalysis, retrieval Retrieval,
) (*domain.Answer, error) {
	chunks := retrieval.Chunks
	next := domain.StateSucceeded
	if retrieval.Degraded {
		next = domain.StateDegradedFallback
	}

	answer := &domain.Answer{
		Status:      domain.StatusSuccess,
		Question:    analysis.OriginalQuery,
		Sources:     []domain.Source{},
		State:       domain.StateGenerating,
		Language:    analysis.Language,
		Intent:      analysis.Intent,
		Suggestions: analysis.Suggestions,
	}

	if len(chunks) == 0 {
		logger.Debug("No chunks retrieved; skipping generation")
		answer.Text = localized(noInformation, analysis.Language)
		answer.Metrics.ConfidenceScore = round3(noSourcesConfidence * analysis.Confidence)
		answer.Metrics.TokenCount = estimateTokens(answer.Text)
		return answer, advance(answer, next)
	}

	refs := make([]domain.SegmentRef, len(chunks))
	for i, ch := range chunks {
		refs[i] = ch.Chunk.Locate(analysis.Keywords)
		answer.Sources = append(answer.Sources, sourceOf(ch, refs[i]))
	}

	start := time.Now()
	system, prompt := c.buildPrompt(analysis, chunks, refs)
	outcome, err := c.chain.Generate(ctx, prompt, system)
	answer.Metrics.GenerationTime = time.Since(start).Seconds()

	switch {
	case err == nil:
		answer.Text = outcome.Text
		answer.Provider = outcome.Provider
		if outcome.Degraded() {
			next = domain.StateDegradedFallback
		}
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		logger.Warn("All LLM providers failed, composing extractive answer: %v", err)
		answer.Text = extractiveAnswer(analysis, chunks)
		answer.Provider = LocalProvider
		next = domain.StateDegradedFallback
	}

	relevance := 0.0
	for _, s := range answer.Sources {
		relevance += s.Score
	}
	relevance /= float64(len(answer.Sources))

	answer.Metrics.SourceCount = len(answer.Sources)
	answer.Metrics.RelevanceScore = round3(relevance)
	answer.Metrics.TokenCount = estimateTokens(prompt) + estimateTokens(answer.Text)
	answer.Metrics.ConfidenceScore = answerConfidence(relevance, analysis.Confidence, len(chunks), next)
	answer.Metrics.GenerationTime = round3(answer.Metrics.GenerationTime)

	return answer, advance(answer, next)
}

// buildPrompt returns the system instruction and the user prompt.
func (c *AnswerComposer) buildPrompt(
	analysis *domain.QueryAnalysis, chunks []domain.ScoredChunk, refs []domain.SegmentRef,
) (string, string) {
	system := c.load(driven.PromptAnswerSystem, builtinSystem)
	template := c.load(driven.PromptAnswer, builtinTemplate)
	guidance := c.load(driven.GuidancePrompt(string(analysis.Intent)), "")

	var ctxText strings.Builder
	for i, ch := range chunks {
		fmt.Fprintf(&ctxText, "[%d] (%s)\n%s\n\n", i+1, citation(ch.Chunk, refs[i]), strings.TrimSpace(ch.Chunk.Content))
	}

	question := analysis.EnhancedQuery
	if question == "" {
		question = analysis.OriginalQuery
	}

	prompt := strings.NewReplacer(
		"{{guidance}}", guidance,
		"{{language}}", localized(languageDirective, analysis.Language),
		"{{context}}", strings.TrimSpace(ctxText.String()),
		"{{question}}", question,
	).Replace(template)
	return system, strings.TrimSpace(prompt)
}

func (c *AnswerComposer) load(name, fallback string) string {
	if c.prompts == nil {
		return fallback
	}
	p, err := c.prompts.Load(name)
	if err != nil || p == "" {
		return fallback
	}
	return p
}

// citation renders "policy.pdf, page 2" style labels.
func citation(ch domain.Chunk, ref domain.SegmentRef) string {
	parts := []string{sourceName(ch)}
	switch {
	case ref.Page > 0:
		parts = append(parts, fmt.Sprintf("page %d", ref.Page))
	case ref.Sheet != "":
		parts = append(parts, fmt.Sprintf("sheet %s, row %d", ref.Sheet, ref.Row))
	case ref.Paragraph > 0:
		parts = append(parts, fmt.Sprintf("paragraph %d", ref.Paragraph))
	}
	return strings.Join(parts, ", ")
}

func sourceName(ch domain.Chunk) string {
	if ch.Metadata.Source != "" {
		return ch.Metadata.Source
	}
	return ch.DocumentID
}

func sourceOf(sc domain.ScoredChunk, ref domain.SegmentRef) domain.Source {
	return domain.Source{
		Filename: sourceName(sc.Chunk),
		Excerpt:  excerpt(sc.Chunk.SpanText(ref), excerptLength),
		Score:    round3(math.Max(sc.Score, 0)),
		Page:     ref.Page,
		Sheet:    ref.Sheet,
		Row:      ref.Row,
		ChunkID:  sc.Chunk.ID,
	}
}

// excerpt trims text to at most n runes, marking truncation with "...".
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n-3]) + "..."
}

// extractiveAnswer quotes the sentences of the top chunks that share the
// most keywords with the question.
func extractiveAnswer(analysis *domain.QueryAnalysis, chunks []domain.ScoredChunk) string {
	type candidate struct {
		text   string
		source int
		score  int
		order  int
	}

	var cands []candidate
	for i, ch := range chunks {
		for _, s := range splitSentences(ch.Chunk.Content) {
			cands = append(cands, candidate{text: s, source: i + 1, score: keywordHits(s, analysis.Keywords), order: len(cands)})
		}
	}
	if len(cands) == 0 {
		return localized(noInformation, analysis.Language)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].order < cands[j].order
	})

	picked := cands[:min(extractiveSentences, len(cands))]
	if picked[0].score > 0 {
		n := 0
		for n < len(picked) && picked[n].score > 0 {
			n++
		}
		picked = picked[:n]
	} else {
		picked = picked[:1]
	}

	var b strings.Builder
	b.WriteString(localized(extractiveHeader, analysis.Language))
	for _, c := range picked {
		fmt.Fprintf(&b, "\n- %s [%d]", c.text, c.source)
	}
	return b.String()
}

// splitSentences breaks text at sentence punctuation and line breaks.
func splitSentences(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		s := strings.Join(strings.Fields(cur.String()), " ")
		if utf8.RuneCountInString(s) > 1 {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, r := range text {
		if r == '\n' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '。' || r == 'ฯ' {
			flush()
		}
	}
	flush()
	return out
}

func keywordHits(sentence string, keywords []string) int {
	lower := strings.ToLower(sentence)
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

// answerConfidence blends retrieval relevance, query confidence and
// source coverage, penalising degraded answers.
func answerConfidence(relevance, queryConfidence float64, sources int, state domain.AnswerState) float64 {
	coverage := math.Min(float64(sources)/3, 1)
	c := 0.5*relevance + 0.3*queryConfidence + 0.2*coverage
	if state == domain.StateDegradedFallback {
		c -= fallbackPenalty
	}
	return round3(math.Max(0, math.Min(1, c)))
}

// estimateTokens approximates tokens as runes/4, counting Thai and other
// scripts without spaces the same way.
func estimateTokens(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return (n + 3) / 4
}

func localized(m map[domain.Language]string, lang domain.Language) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m[domain.LanguageEnglish]
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// advance moves a to next, rejecting transitions the state machine forbids.
func advance(a *domain.Answer, next domain.AnswerState) error {
	if !a.State.CanTransitionTo(next) {
		return fmt.Errorf("invalid answer state transition %s -> %s", a.State, next)
	}
	a.State = next
	a.Degraded = next == domain.StateDegradedFallback
	return nil
}
