package services

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
)

// maxKeywords bounds keyword extraction.
const maxKeywords = 5

// maxSuggestions bounds follow-up suggestions.
const maxSuggestions = 3

// maxRepeats is how many times one word may repeat in a row before the
// run is collapsed.
const maxRepeats = 1

// forbiddenChars are stripped from queries.
const forbiddenChars = `<>{}[]\`

var englishStopWords = toSet(
	"what", "is", "the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
	"by", "are", "you", "your", "this", "that", "these", "those", "have", "has", "had", "do", "does",
	"did", "will", "would", "could", "should", "can", "may", "might", "must", "how", "why", "when",
	"where", "which", "who", "me", "my", "it", "its", "be", "about", "tell", "please",
)

var thaiStopWords = toSet(
	"คือ", "อะไร", "อย่างไร", "ของ", "ใน", "ที่", "และ", "หรือ", "แต่", "กับ", "โดย", "มี", "เป็น", "จะ",
	"ได้", "ให้", "จาก", "ถึง", "นี้", "นั้น", "ไหน", "ใคร", "เมื่อ", "ทำไม", "เท่าไร", "กี่", "หลาย",
	"มาก", "น้อย", "ดี", "ไม่", "ใช่", "ใช่ไหม", "หรือไม่", "ครับ", "ค่ะ", "คะ",
)

// intentPattern lists the terms that select an intent. ASCII terms match
// whole words; Thai terms match as substrings since Thai is written
// without spaces.
type intentPattern struct {
	intent domain.Intent
	terms  []string
	// expand is appended to the enhanced query when none of it is present.
	expand []string
}

var intentPatterns = []intentPattern{
	{domain.IntentObjectionHandling, []string{"objection", "objections", "not interested", "too expensive", "ข้อโต้แย้ง", "ปฏิเสธ", "ไม่สนใจ", "เจรจา"}, []string{"objection", "response"}},
	{domain.IntentComparison, []string{"compare", "comparison", "difference", "differences", "versus", "vs", "better", "เปรียบเทียบ", "แตกต่าง", "ต่างกัน"}, []string{"difference"}},
	{domain.IntentCompliance, []string{"compliance", "regulation", "regulations", "oic", "ethics", "law", "legal", "กฎระเบียบ", "จรรยาบรรณ", "คปภ", "กฎหมาย"}, []string{"regulation"}},
	{domain.IntentFactFinding, []string{"fact finding", "fact-finding", "customer needs", "needs analysis", "สอบถามลูกค้า", "ความต้องการลูกค้า", "ถามลูกค้า"}, []string{"customer", "needs"}},
	{domain.IntentPricing, []string{"price", "prices", "pricing", "cost", "costs", "premium", "premiums", "fee", "fees", "ราคา", "เบี้ย", "ค่าธรรมเนียม"}, []string{"premium"}},
	{domain.IntentBenefits, []string{"benefit", "benefits", "advantage", "advantages", "ประโยชน์", "ข้อดี", "สิทธิประโยชน์"}, []string{"benefits"}},
	{domain.IntentProcedure, []string{"how to", "how do", "how can", "steps", "procedure", "process", "apply", "claim", "วิธี", "ขั้นตอน", "อย่างไร"}, []string{"steps"}},
	{domain.IntentProductKnowledge, []string{"product", "products", "policy", "plan", "coverage", "cover", "covers", "insurance", "rider", "ผลิตภัณฑ์", "ประกัน", "กรมธรรม์", "ความคุ้มครอง"}, []string{"coverage"}},
	{domain.IntentDefinition, []string{"what", "define", "definition", "meaning", "mean", "คือ", "อะไร", "หมายถึง", "ความหมาย"}, nil},
}

// suggestions are follow-up questions per intent and language. %s is the
// sanitised query.
var suggestions = map[domain.Intent]map[domain.Language][]string{
	domain.IntentFactFinding: {
		domain.LanguageEnglish: {"Effective fact-finding questions for customer needs", "How to categorise customer needs (Protect/Build/Enhance)", "Best practices for customer discovery"},
		domain.LanguageThai:    {"เทคนิคการถามลูกค้าเพื่อเข้าใจความต้องการ", "วิธีจัดกลุ่มความต้องการลูกค้า (Protect/Build/Enhance)", "คำถามที่ควรใช้ในการ fact finding"},
	},
	domain.IntentProductKnowledge: {
		domain.LanguageEnglish: {"Product details and recommendations", "Comparing different insurance types", "How to explain products to customers"},
		domain.LanguageThai:    {"รายละเอียดผลิตภัณฑ์ประกันที่เหมาะสม", "ข้อแตกต่างระหว่างประกันแต่ละประเภท", "วิธีอธิบายผลิตภัณฑ์ให้ลูกค้าเข้าใจ"},
	},
	domain.IntentCompliance: {
		domain.LanguageEnglish: {"Important compliance regulations", "Insurance agent code of ethics", "OIC regulatory requirements"},
		domain.LanguageThai:    {"กฎระเบียบที่สำคัญในการขายประกัน", "จรรยาบรรณ 10 ข้อสำหรับตัวแทนประกัน", "วิธีปฏิบัติตามกฎของ คปภ."},
	},
	domain.IntentObjectionHandling: {
		domain.LanguageEnglish: {"Handling customer objections", "Closing techniques for insurance sales", "Sales process best practices"},
		domain.LanguageThai:    {"การจัดการข้อโต้แย้งจากลูกค้า", "วิธีการปิดการขายประกัน", "เทคนิคการเจรจาและการขาย"},
	},
	domain.IntentDefinition: {
		domain.LanguageEnglish: {"More details about %s", "Complete information on %s"},
		domain.LanguageThai:    {"ข้อมูลเพิ่มเติมเกี่ยวกับ %s", "รายละเอียดของ %s"},
	},
	domain.IntentBenefits: {
		domain.LanguageEnglish: {"Other benefits of %s", "Advantages of %s"},
		domain.LanguageThai:    {"ประโยชน์อื่นๆ ของ %s", "ข้อดีของ %s"},
	},
}

// QueryAnalyzer sanitises queries and derives a QueryAnalysis.
// It is stateless and safe for concurrent use.
type QueryAnalyzer struct {
	minLength int
	maxLength int
}

// NewQueryAnalyzer creates an analyzer with the given length bounds.
func NewQueryAnalyzer(settings domain.QuerySettings) *QueryAnalyzer {
	if settings.MinLength <= 0 {
		settings.MinLength = 1
	}
	if settings.MaxLength <= 0 {
		settings.MaxLength = domain.DefaultAppSettings().Query.MaxLength
	}
	return &QueryAnalyzer{minLength: settings.MinLength, maxLength: settings.MaxLength}
}

// Sanitize cleans a raw query: control characters and <>{}[]\ are removed,
// whitespace is collapsed, immediate word repetition is collapsed, and the
// result is capped at the maximum length in runes. Empty or too-short
// results fail with domain.ErrInvalidQuery.
func (a *QueryAnalyzer) Sanitize(raw string) (string, error) {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, " ")
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(forbiddenChars, r):
			return -1
		case unicode.IsControl(r):
			return ' '
		default:
			return r
		}
	}, raw)

	words := collapseRepeats(strings.Fields(cleaned))
	q := strings.Join(words, " ")

	if utf8.RuneCountInString(q) > a.maxLength {
		q = strings.TrimSpace(string([]rune(q)[:a.maxLength]))
	}

	if q == "" {
		return "", fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(q); n < a.minLength {
		return "", fmt.Errorf("%w: query too short (%d < %d characters)", domain.ErrInvalidQuery, n, a.minLength)
	}
	return q, nil
}

// Analyze sanitises raw and classifies it.
func (a *QueryAnalyzer) Analyze(raw string) (*domain.QueryAnalysis, error) {
	q, err := a.Sanitize(raw)
	if err != nil {
		return nil, err
	}

	lang := DetectLanguage(q)
	keywords := extractKeywords(q, lang)
	pattern, matched := classify(q)

	return &domain.QueryAnalysis{
		OriginalQuery: q,
		EnhancedQuery: enhance(q, pattern),
		Keywords:      keywords,
		Language:      lang,
		Intent:        pattern.intent,
		Confidence:    confidence(q, keywords, matched),
		Suggestions:   suggest(q, pattern.intent, lang),
	}, nil
}

// DetectLanguage returns thai when text contains any Thai code point.
func DetectLanguage(text string) domain.Language {
	for _, r := range text {
		if unicode.Is(unicode.Thai, r) {
			return domain.LanguageThai
		}
	}
	return domain.LanguageEnglish
}

func extractKeywords(q string, lang domain.Language) []string {
	seen := make(map[string]struct{})
	var keywords []string
	add := func(w string) {
		if _, dup := seen[w]; dup || len(keywords) >= maxKeywords {
			return
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}

	for _, tok := range tokenize(q) {
		isThai := DetectLanguage(tok) == domain.LanguageThai
		switch {
		case isThai:
			if _, stop := thaiStopWords[tok]; !stop && utf8.RuneCountInString(tok) > 1 {
				add(tok)
			}
		case lang == domain.LanguageThai:
			// Latin terms inside Thai queries are usually product names.
			if len(tok) > 1 {
				add(tok)
			}
		default:
			if _, stop := englishStopWords[tok]; !stop && len(tok) > 2 {
				add(tok)
			}
		}
	}
	return keywords
}

// tokenize lower-cases q and splits it into runs of letters, marks and digits.
func tokenize(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r) && !unicode.IsNumber(r)
	})
}

// classify returns the first matching intent pattern, or general.
func classify(q string) (intentPattern, bool) {
	lower := strings.ToLower(q)
	for _, p := range intentPatterns {
		for _, term := range p.terms {
			if containsTerm(lower, term) {
				return p, true
			}
		}
	}
	return intentPattern{intent: domain.IntentGeneral}, false
}

// containsTerm matches ASCII terms on word boundaries and other terms as
// substrings.
func containsTerm(text, term string) bool {
	if !isASCII(term) {
		return strings.Contains(text, term)
	}
	for start := 0; ; {
		i := strings.Index(text[start:], term)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(term)
		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return true
		}
		start = i + 1
	}
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func boundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// enhance appends the intent's expansion terms that the query lacks.
func enhance(q string, p intentPattern) string {
	lower := strings.ToLower(q)
	var extra []string
	for _, term := range p.expand {
		if !containsTerm(lower, term) {
			extra = append(extra, term)
		}
	}
	if len(extra) == 0 {
		return q
	}
	return q + " " + strings.Join(extra, " ")
}

// confidence grows with query length, keyword count and an intent match.
func confidence(q string, keywords []string, matched bool) float64 {
	c := math.Min(float64(utf8.RuneCountInString(q))/50, 1) * 0.5
	c += math.Min(float64(len(keywords))/maxKeywords, 1) * 0.3
	if matched {
		c += 0.2
	}
	return math.Round(math.Min(c, 1)*1000) / 1000
}

func suggest(q string, intent domain.Intent, lang domain.Language) []string {
	templates := suggestions[intent][lang]
	out := make([]string, 0, maxSuggestions)
	for _, t := range templates {
		if len(out) == maxSuggestions {
			break
		}
		if strings.Contains(t, "%s") {
			t = fmt.Sprintf(t, q)
		}
		out = append(out, t)
	}
	return out
}

// collapseRepeats drops words that repeat the previous word more than
// maxRepeats times, ignoring case.
func collapseRepeats(words []string) []string {
	out := words[:0:0]
	run := 0
	for i, w := range words {
		if i > 0 && strings.EqualFold(w, words[i-1]) {
			run++
		} else {
			run = 0
		}
		if run < maxRepeats {
			out = append(out, w)
		}
	}
	return out
}

func toSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
