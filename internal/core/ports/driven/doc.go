// Package driven declares what the services need from the outside world:
// loaders and the chunking pipeline for ingestion, embedding and LLM
// providers, the vector index and document store, the answer cache,
// prompts, trace sinks and the settings file.
//
// Ingestion and asking cannot run without loaders, a post-processor, at
// least one EmbeddingService, a VectorIndex and a DocumentStore. The rest
// may be nil. Without an LLMService answers are extracted from retrieved
// passages; without a PromptStore the built-in prompts apply. A nil
// QueryCache or TraceSink just turns caching or tracing off.
//
// This package imports domain and nothing else from the module.
package driven
