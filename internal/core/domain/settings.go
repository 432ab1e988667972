package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGemini is Google Gemini via the Generative Language API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderLocal is the in-process hashing embedder. It needs no
	// network and is the last embedding fallback.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGemini, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGemini
}

// IsLocal returns true if this provider runs on the local machine.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI"
	case AIProviderAnthropic:
		return "Anthropic"
	case AIProviderGemini:
		return "Google Gemini"
	case AIProviderLocal:
		return "Local hashing embedder (offline)"
	default:
		return unknownDescription
	}
}

// ProviderSettings configures one provider in an ordered chain.
type ProviderSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured returns true if the provider can be constructed.
func (p ProviderSettings) IsConfigured() bool {
	if !p.Provider.IsValid() {
		return false
	}
	if p.Provider.RequiresAPIKey() && p.APIKey == "" {
		return false
	}
	return true
}

// ChunkingSettings controls the chunker.
type ChunkingSettings struct {
	// Size is the target chunk length in characters.
	Size int

	// Overlap is the number of characters shared by adjacent chunks.
	Overlap int

	// Tolerance is how far back from the window end the chunker may
	// look for a sentence or whitespace boundary.
	Tolerance int

	// Dedupe drops chunks repeating earlier text in the same document.
	Dedupe bool
}

// RetrievalSettings controls query-time search.
type RetrievalSettings struct {
	K         int
	FetchK    int
	Diversity bool
	Lambda    float64
}

// CacheSettings controls the query cache.
type CacheSettings struct {
	Capacity int
	TTL      time.Duration

	// RedisURL enables the shared second-tier cache when set.
	RedisURL string
}

// EmbeddingSettings configures the ordered embedding provider list.
// The first configured provider is the primary.
type EmbeddingSettings struct {
	Providers  []ProviderSettings
	Dimensions int
	Retries    int
	Timeout    time.Duration
	BatchSize  int

	// RequestsPerSecond limits calls per provider. Zero disables limiting.
	RequestsPerSecond float64
}

// LLMSettings configures the ordered LLM provider chain.
type LLMSettings struct {
	Providers         []ProviderSettings
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
	RequestsPerSecond float64
}

// QuerySettings bounds accepted queries.
type QuerySettings struct {
	MinLength int
	MaxLength int
}

// StorageBackend selects the document/index persistence.
type StorageBackend string

// Storage backends.
const (
	StorageSQLite StorageBackend = "sqlite"
	StorageMemory StorageBackend = "memory"
)

// StorageSettings configures persistence.
type StorageSettings struct {
	Backend StorageBackend
	DataDir string
}

// WatchSettings configures the directory watcher.
type WatchSettings struct {
	Dir      string
	Debounce time.Duration
}

// TraceSettings configures the observability sink.
type TraceSettings struct {
	// File is a JSON-lines file receiving trace records. Empty disables it.
	File string

	// Log mirrors trace records to the verbose logger.
	Log bool
}

// AppSettings holds all resolved application settings.
type AppSettings struct {
	Chunking  ChunkingSettings
	Retrieval RetrievalSettings
	Cache     CacheSettings
	Embedding EmbeddingSettings
	LLM       LLMSettings
	Query     QuerySettings
	Storage   StorageSettings
	Watch     WatchSettings
	Trace     TraceSettings
}

// DefaultAppSettings returns sensible defaults.
// Provider lists are empty; they are resolved from config and environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:      500,
			Overlap:   50,
			Tolerance: 50,
			Dedupe:    false,
		},
		Retrieval: RetrievalSettings{
			K:         5,
			FetchK:    20,
			Diversity: true,
			Lambda:    0.5,
		},
		Cache: CacheSettings{
			Capacity: 100,
			TTL:      time.Hour,
		},
		Embedding: EmbeddingSettings{
			Dimensions: 768,
			Retries:    2,
			Timeout:    30 * time.Second,
			BatchSize:  64,
		},
		LLM: LLMSettings{
			Timeout:     30 * time.Second,
			MaxTokens:   1000,
			Temperature: 0.1,
		},
		Query: QuerySettings{
			MinLength: 1,
			MaxLength: 500,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
		Watch: WatchSettings{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Validate checks settings invariants. It is called once at startup.
func (s AppSettings) Validate() error {
	c := s.Chunking
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunking.size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunking.overlap (%d) must be in [0, chunking.size (%d))",
			ErrInvalidConfig, c.Overlap, c.Size)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: chunking.tolerance must not be negative", ErrInvalidConfig)
	}
	r := s.Retrieval
	if r.K <= 0 {
		return fmt.Errorf("%w: retrieval.k must be positive, got %d", ErrInvalidConfig, r.K)
	}
	if r.Lambda < 0 || r.Lambda > 1 {
		return fmt.Errorf("%w: retrieval.lambda must be in [0, 1], got %g", ErrInvalidConfig, r.Lambda)
	}
	if s.Cache.Capacity <= 0 {
		return fmt.Errorf("%w: cache.capacity must be positive", ErrInvalidConfig)
	}
	if s.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalidConfig)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding.dimensions must be positive", ErrInvalidConfig)
	}
	if s.Embedding.Retries < 0 {
		return fmt.Errorf("%w: embedding.retries must not be negative", ErrInvalidConfig)
	}
	for _, p := range append(append([]ProviderSettings{}, s.Embedding.Providers...), s.LLM.Providers...) {
		if !p.Provider.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, p.Provider)
		}
	}
	if s.Query.MaxLength <= 0 || s.Query.MinLength > s.Query.MaxLength {
		return fmt.Errorf("%w: query.max_length must be positive and not below query.min_length", ErrInvalidConfig)
	}
	return nil
}
