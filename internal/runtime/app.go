// Package runtime builds the application context: settings, stores, index,
// cache, provider chains, services and the trace sink. Driving adapters
// receive an App instead of reaching for package-level state.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/ai"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/cache"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/config/file"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/storage/memory"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/storage/sqlite"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/trace"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/services"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/loaders"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/postprocessors"
)

// traceBuffer is the number of queued trace records before drops.
const traceBuffer = 256

// Options control how the App is built.
type Options struct {
	// ConfigDir holds config.toml and prompts/. Empty uses file.DefaultDir.
	ConfigDir string

	// EnvFile is a dotenv file loaded before settings are resolved.
	// Variables already set in the process win. Empty skips loading;
	// a missing file is ignored.
	EnvFile string

	// Env overrides environment lookups. Nil reads the process environment.
	Env func(string) string

	// ConfigStore overrides the TOML config file.
	ConfigStore driven.ConfigStore
}

// App is the explicit application context.
type App struct {
	Settings    *domain.AppSettings
	ConfigDir   string
	Config      driven.ConfigStore
	SettingsSvc *services.SettingsService

	Index driven.VectorIndex
	Docs  driven.DocumentStore
	Cache driven.QueryCache
	Trace driven.TraceSink

	Ask        driving.AskService
	Ingestion  driving.IngestionService
	Management driving.ManagementService

	// EmbeddingProviders and LLMProviders name the resolved chains,
	// primary first.
	EmbeddingProviders []string
	LLMProviders       []string

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// New builds the App. On error everything opened so far is closed.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func New(ctx context.Context, opts Options) (*App, error) {
	app := &App{}
	ready := false
	defer func() {
		if !ready {
			_ = app.Close()
		}
	}()

	var err error

	if opts.EnvFile != "" {
		if lerr := godotenv.Load(opts.EnvFile); lerr != nil && !errors.Is(lerr, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.EnvFile, lerr)
		}
	}

	// ==================== Settings ====================

	app.ConfigDir = opts.ConfigDir
	if app.ConfigDir == "" {
		if app.ConfigDir, err = file.DefaultDir(); err != nil {
			return nil, err
		}
	}
	app.Config = opts.ConfigStore
	if app.Config == nil {
		if app.Config, err = file.NewConfigStore(app.ConfigDir); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	app.SettingsSvc = services.NewSettingsService(app.Config, opts.Env)
	if app.Settings, err = app.SettingsSvc.Get(); err != nil {
		return nil, err
	}
	if err = app.Settings.Validate(); err != nil {
		return nil, err
	}
	settings := app.Settings
	if settings.Storage.DataDir == "" {
		settings.Storage.DataDir = filepath.Join(app.ConfigDir, "data")
	}

	prompts, err := file.NewPromptStore(filepath.Join(app.ConfigDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("prompt store: %w", err)
	}

	// ==================== Providers ====================

	chains, err := ai.BuildChains(ctx, *settings)
	if err != nil {
		return nil, err
	}
	app.onClose("providers", func() error { chains.Close(); return nil })
	for _, w := range chains.Warnings {
		logger.Debug("%s", w)
	}
	for _, p := range chains.Embedding {
		app.EmbeddingProviders = append(app.EmbeddingProviders, p.Name)
	}
	for _, p := range chains.LLM {
		app.LLMProviders = append(app.LLMProviders, p.Name)
	}
	if len(chains.LLM) == 0 {
		logger.Warn("no LLM provider configured; answers will be extractive")
	}

	embedder, err := services.NewFallbackEmbedder(chains.Embedding, settings.Embedding)
	if err != nil {
		return nil, err
	}

	// ==================== Storage ====================

	switch settings.Storage.Backend {
	case domain.StorageMemory:
		app.Index = memory.NewVectorIndex(settings.Embedding.Dimensions)
		app.Docs = memory.NewDocumentStore()
	case domain.StorageSQLite:
		store, serr := sqlite.NewStore(settings.Storage.DataDir)
		if serr != nil {
			return nil, fmt.Errorf("open storage: %w", serr)
		}
		app.onClose("sqlite", store.Close)
		model := chains.Embedding[0].Service.ModelName()
		if app.Index, err = store.VectorIndex(ctx, model, settings.Embedding.Dimensions); err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		app.Docs = store.DocumentStore()
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidConfig, settings.Storage.Backend)
	}
	app.onClose("index", app.Index.Close)

	// ==================== Cache ====================

	lru := cache.NewLRU(settings.Cache.Capacity, settings.Cache.TTL)
	app.Cache = lru
	if settings.Cache.RedisURL != "" {
		shared, rerr := cache.NewRedisFromURL(ctx, settings.Cache.RedisURL, settings.Cache.TTL)
		if rerr != nil {
			logger.Warn("redis cache disabled: %v", rerr)
		} else {
			app.onClose("redis", shared.Close)
			app.Cache = cache.NewTiered(lru, shared, settings.Cache.TTL)
		}
	}

	// ==================== Trace ====================

	var sinks trace.Multi
	if settings.Trace.File != "" {
		jsonl, terr := trace.NewJSONL(settings.Trace.File, traceBuffer)
		if terr != nil {
			return nil, fmt.Errorf("trace file: %w", terr)
		}
		app.onClose("trace", jsonl.Close)
		sinks = append(sinks, jsonl)
	}
	if settings.Trace.Log {
		sinks = append(sinks, trace.LogSink{})
	}
	switch len(sinks) {
	case 0:
		app.Trace = trace.Nop{}
	case 1:
		app.Trace = sinks[0]
	default:
		app.Trace = sinks
	}

	// ==================== Services ====================

	loaderRegistry := loaders.NewRegistry()
	loaders.RegisterDefaults(loaderRegistry)

	pipeline, err := postprocessors.NewDefaultPipeline(settings.Chunking)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	ingestion := services.NewIngestionService(loaderRegistry, pipeline, embedder, app.Index, app.Docs)
	ingestion.SetCache(app.Cache)
	ingestion.SetTraceSink(app.Trace)

	composer := services.NewAnswerComposer(services.NewLLMChain(chains.LLM, settings.LLM), prompts)
	ask := services.NewAskService(
		services.NewQueryAnalyzer(settings.Query),
		embedder,
		app.Index,
		composer,
		settings.Retrieval,
	)
	ask.SetCache(app.Cache)
	ask.SetTraceSink(app.Trace)

	management := services.NewManagementService(ingestion, app.Index, app.Docs)

	app.Ask = ask
	app.Ingestion = ingestion
	app.Management = management

	if verr := checkIndex(ctx, app.Index, embedder.Dimensions()); verr != nil {
		if !errors.Is(verr, domain.ErrIndexCorruption) {
			return nil, verr
		}
		logger.Warn("index inconsistent, rebuilding: %v", verr)
		n, rerr := management.Rebuild(ctx)
		if rerr != nil {
			logger.Warn("rebuild finished with errors: %v", rerr)
		}
		logger.Info("rebuilt index from %d documents", n)
	}

	logger.Debug("runtime ready: storage=%s embedding=%v llm=%v",
		settings.Storage.Backend, app.EmbeddingProviders, app.LLMProviders)
	ready = true
	return app, nil
}

// checkIndex verifies the index and that its vectors match the embedder.
// Both failures wrap domain.ErrIndexCorruption so they take the rebuild path.
func checkIndex(ctx context.Context, index driven.VectorIndex, dims int) error {
	if err := index.Verify(ctx); err != nil {
		return err
	}
	n, err := index.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 && index.Dimensions() != dims {
		return fmt.Errorf("%w: index holds %d-dimension vectors, embedder produces %d",
			domain.ErrIndexCorruption, index.Dimensions(), dims)
	}
	return nil
}

func (a *App) onClose(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Ready reports whether the App can serve queries.
func (a *App) Ready(ctx context.Context) error {
	if _, err := a.Index.Count(ctx); err != nil {
		return err
	}
	return nil
}

