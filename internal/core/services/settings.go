package services

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Config keys for settings storage.
const (
	keyChunkSize          = "chunking.size"
	keyChunkOverlap       = "chunking.overlap"
	keyChunkTolerance     = "chunking.tolerance"
	keyChunkDedupe        = "chunking.dedupe"
	keyRetrievalK         = "retrieval.k"
	keyRetrievalFetchK    = "retrieval.fetch_k"
	keyRetrievalDiversity = "retrieval.diversity"
	keyRetrievalLambda    = "retrieval.lambda"
	keyCacheCapacity      = "cache.capacity"
	keyCacheTTL           = "cache.ttl"
	keyCacheRedisURL      = "cache.redis_url"
	keyEmbedProviders     = "embedding.providers"
	keyEmbedDims          = "embedding.dimensions"
	keyEmbedRetries       = "embedding.retries"
	keyEmbedTimeout       = "embedding.timeout"
	keyEmbedBatchSize     = "embedding.batch_size"
	keyEmbedRPS           = "embedding.requests_per_second"
	keyLLMProviders       = "llm.providers"
	keyLLMTimeout         = "llm.timeout"
	keyLLMMaxTokens       = "llm.max_tokens"
	keyLLMTemperature     = "llm.temperature"
	keyLLMRPS             = "llm.requests_per_second"
	keyQueryMinLength     = "query.min_length"
	keyQueryMaxLength     = "query.max_length"
	keyStorageBackend     = "storage.backend"
	keyStorageDataDir     = "storage.data_dir"
	keyWatchDir           = "watch.dir"
	keyWatchDebounce      = "watch.debounce"
	keyTraceFile          = "trace.file"
	keyTraceLog           = "trace.log"
)

// Environment variables consulted after the config file.
//
//nolint:gosec // G101: These are variable names, not credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvRedisURL     = "REDIS_URL"
	EnvTraceFile    = "RAGBOT_TRACE_FILE"
)

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindBool
	kindString
	kindDuration
	kindList
)

// settingKeys lists every key Set accepts.
var settingKeys = map[string]valueKind{
	keyChunkSize:          kindInt,
	keyChunkOverlap:       kindInt,
	keyChunkTolerance:     kindInt,
	keyChunkDedupe:        kindBool,
	keyRetrievalK:         kindInt,
	keyRetrievalFetchK:    kindInt,
	keyRetrievalDiversity: kindBool,
	keyRetrievalLambda:    kindFloat,
	keyCacheCapacity:      kindInt,
	keyCacheTTL:           kindDuration,
	keyCacheRedisURL:      kindString,
	keyEmbedProviders:     kindList,
	keyEmbedDims:          kindInt,
	keyEmbedRetries:       kindInt,
	keyEmbedTimeout:       kindDuration,
	keyEmbedBatchSize:     kindInt,
	keyEmbedRPS:           kindFloat,
	keyLLMProviders:       kindList,
	keyLLMTimeout:         kindDuration,
	keyLLMMaxTokens:       kindInt,
	keyLLMTemperature:     kindFloat,
	keyLLMRPS:             kindFloat,
	keyQueryMinLength:     kindInt,
	keyQueryMaxLength:     kindInt,
	keyStorageBackend:     kindString,
	keyStorageDataDir:     kindString,
	keyWatchDir:           kindString,
	keyWatchDebounce:      kindDuration,
	keyTraceFile:          kindString,
	keyTraceLog:           kindBool,
}

// Default provider orders. Ollama joins only when OLLAMA_HOST is set or
// the config lists it; the local embedder always closes the chain.
var (
	defaultEmbeddingOrder = []domain.AIProvider{domain.AIProviderOpenAI, domain.AIProviderGemini}
	defaultLLMOrder       = []domain.AIProvider{
		domain.AIProviderOpenAI, domain.AIProviderAnthropic, domain.AIProviderGemini,
	}
)

// SettingsService resolves application settings from the config store
// and the environment.
type SettingsService struct {
	configStore driven.ConfigStore
	env         func(string) string
}

// NewSettingsService creates a new settings service. A nil env reads the
// process environment.
func NewSettingsService(configStore driven.ConfigStore, env func(string) string) *SettingsService {
	if env == nil {
		env = os.Getenv
	}
	return &SettingsService{
		configStore: configStore,
		env:         env,
	}
}

// Get resolves the current settings. Provider chains come back ordered,
// primary first. The result is not validated; see AppSettings.Validate.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	embedProviders, err := s.providers(keyEmbedProviders, defaultEmbeddingOrder, true)
	if err != nil {
		return nil, err
	}
	llmProviders, err := s.providers(keyLLMProviders, defaultLLMOrder, false)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := s.getDuration(keyCacheTTL, d.Cache.TTL)
	if err != nil {
		return nil, err
	}
	embedTimeout, err := s.getDuration(keyEmbedTimeout, d.Embedding.Timeout)
	if err != nil {
		return nil, err
	}
	llmTimeout, err := s.getDuration(keyLLMTimeout, d.LLM.Timeout)
	if err != nil {
		return nil, err
	}
	debounce, err := s.getDuration(keyWatchDebounce, d.Watch.Debounce)
	if err != nil {
		return nil, err
	}

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:      s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap:   s.getInt(keyChunkOverlap, d.Chunking.Overlap),
			Tolerance: s.getInt(keyChunkTolerance, d.Chunking.Tolerance),
			Dedupe:    s.getBool(keyChunkDedupe, d.Chunking.Dedupe),
		},
		Retrieval: domain.RetrievalSettings{
			K:         s.getInt(keyRetrievalK, d.Retrieval.K),
			FetchK:    s.getInt(keyRetrievalFetchK, d.Retrieval.FetchK),
			Diversity: s.getBool(keyRetrievalDiversity, d.Retrieval.Diversity),
			Lambda:    s.getFloat(keyRetrievalLambda, d.Retrieval.Lambda),
		},
		Cache: domain.CacheSettings{
			Capacity: s.getInt(keyCacheCapacity, d.Cache.Capacity),
			TTL:      cacheTTL,
			RedisURL: s.firstOf(s.env(EnvRedisURL), s.str(keyCacheRedisURL)),
		},
		Embedding: domain.EmbeddingSettings{
			Providers:         embedProviders,
			Dimensions:        s.getInt(keyEmbedDims, d.Embedding.Dimensions),
			Retries:           s.getInt(keyEmbedRetries, d.Embedding.Retries),
			Timeout:           embedTimeout,
			BatchSize:         s.getInt(keyEmbedBatchSize, d.Embedding.BatchSize),
			RequestsPerSecond: s.getFloat(keyEmbedRPS, d.Embedding.RequestsPerSecond),
		},
		LLM: domain.LLMSettings{
			Providers:         llmProviders,
			Timeout:           llmTimeout,
			MaxTokens:         s.getInt(keyLLMMaxTokens, d.LLM.MaxTokens),
			Temperature:       s.getFloat(keyLLMTemperature, d.LLM.Temperature),
			RequestsPerSecond: s.getFloat(keyLLMRPS, d.LLM.RequestsPerSecond),
		},
		Query: domain.QuerySettings{
			MinLength: s.getInt(keyQueryMinLength, d.Query.MinLength),
			MaxLength: s.getInt(keyQueryMaxLength, d.Query.MaxLength),
		},
		Storage: domain.StorageSettings{
			Backend: domain.StorageBackend(s.getString(keyStorageBackend, string(d.Storage.Backend))),
			DataDir: s.str(keyStorageDataDir),
		},
		Watch: domain.WatchSettings{
			Dir:      s.str(keyWatchDir),
			Debounce: debounce,
		},
		Trace: domain.TraceSettings{
			File: s.firstOf(s.env(EnvTraceFile), s.str(keyTraceFile)),
			Log:  s.getBool(keyTraceLog, d.Trace.Log),
		},
	}
	return settings, nil
}

// Set validates and persists one setting. The raw value is parsed by the
// key's type; list values are comma separated. A value that leaves the
// settings invalid is rolled back and reported as domain.ErrInvalidConfig.
func (s *SettingsService) Set(key, raw string) error {
	kind, ok := settingKeys[key]
	if !ok && !isProviderKey(key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidConfig, key)
	}
	if !ok {
		kind = kindString
	}

	value, err := parseValue(kind, raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
	}

	prev, had := s.configStore.Get(key)
	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}

	settings, err := s.Get()
	if err == nil {
		err = settings.Validate()
	}
	if err != nil {
		rerr := s.configStore.Unset(key)
		if had {
			rerr = s.configStore.Set(key, prev)
		}
		if rerr != nil {
			return fmt.Errorf("restore %s after %v: %w", key, err, rerr)
		}
		return err
	}
	return nil
}

// Keys returns every settable key, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKeys))
	for k := range settingKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// providers resolves an ordered provider chain. The config list wins when
// present; otherwise the default order is used with Ollama appended when
// OLLAMA_HOST is set. Embedding chains always end with the local embedder.
func (s *SettingsService) providers(key string, defaults []domain.AIProvider, embedding bool) ([]domain.ProviderSettings, error) {
	var order []domain.AIProvider
	if names := s.list(key); len(names) > 0 {
		for _, name := range names {
			p := domain.AIProvider(strings.ToLower(strings.TrimSpace(name)))
			if !p.IsValid() {
				return nil, fmt.Errorf("%w: %s: unknown provider %q", domain.ErrInvalidConfig, key, name)
			}
			order = append(order, p)
		}
	} else {
		order = append(order, defaults...)
		if s.env(EnvOllamaHost) != "" {
			order = append(order, domain.AIProviderOllama)
		}
	}

	seen := make(map[domain.AIProvider]bool, len(order))
	var result []domain.ProviderSettings
	for _, p := range order {
		if seen[p] {
			continue
		}
		seen[p] = true
		if embedding && p == domain.AIProviderAnthropic {
			return nil, fmt.Errorf("%w: anthropic does not support embeddings", domain.ErrInvalidConfig)
		}
		if !embedding && p == domain.AIProviderLocal {
			return nil, fmt.Errorf("%w: local provider only supports embeddings", domain.ErrInvalidConfig)
		}
		result = append(result, s.provider(p))
	}
	if embedding && !seen[domain.AIProviderLocal] {
		result = append(result, s.provider(domain.AIProviderLocal))
	}
	return result, nil
}

// provider reads providers.<name>.{model,base_url,api_key}, with the
// environment taking precedence for keys and the Ollama host.
func (s *SettingsService) provider(p domain.AIProvider) domain.ProviderSettings {
	prefix := "providers." + p.String() + "."
	ps := domain.ProviderSettings{
		Provider: p,
		Model:    s.str(prefix + "model"),
		BaseURL:  s.str(prefix + "base_url"),
		APIKey:   s.str(prefix + "api_key"),
	}
	switch p {
	case domain.AIProviderOpenAI:
		ps.APIKey = s.firstOf(s.env(EnvOpenAIKey), ps.APIKey)
	case domain.AIProviderAnthropic:
		ps.APIKey = s.firstOf(s.env(EnvAnthropicKey), ps.APIKey)
	case domain.AIProviderGemini:
		ps.APIKey = s.firstOf(s.env(EnvGoogleKey), s.env(EnvGeminiKey), ps.APIKey)
	case domain.AIProviderOllama:
		ps.BaseURL = s.firstOf(s.env(EnvOllamaHost), ps.BaseURL)
	}
	return ps
}

func isProviderKey(key string) bool {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || parts[0] != "providers" || !domain.AIProvider(parts[1]).IsValid() {
		return false
	}
	switch parts[2] {
	case "model", "base_url", "api_key":
		return true
	default:
		return false
	}
}

func parseValue(kind valueKind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch kind {
	case kindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", raw)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected true or false, got %q", raw)
		}
		return b, nil
	case kindDuration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("expected a duration like 30s, got %q", raw)
		}
		return raw, nil
	case kindList:
		var items []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return raw, nil
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.str(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val, _ := s.configStore.Get(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, _ := s.configStore.Get(key)
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return defaultVal
	}
}

// str returns the string at key, or "" for absent and non-string values.
func (s *SettingsService) str(key string) string {
	val, _ := s.configStore.Get(key)
	v, _ := val.(string)
	return v
}

// list reads a string array. TOML arrays decode as []any; non-string
// items are skipped.
func (s *SettingsService) list(key string) []string {
	val, _ := s.configStore.Get(key)
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	val, _ := s.configStore.Get(key)
	if b, ok := val.(bool); ok {
		return b
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := s.str(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, key, err)
	}
	return d, nil
}
