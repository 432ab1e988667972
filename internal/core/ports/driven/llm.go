package driven

import "context"

// LLMService writes answers from a composed prompt. OpenAI, Anthropic,
// Gemini and Ollama implement it; the LLM chain tries them in order.
type LLMService interface {
	// Generate answers a single prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat answers the last message given the ones before it.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName is reported on answers and traces.
	ModelName() string

	Ping(ctx context.Context) error
	Close() error
}

// GenerateOptions tunes one Generate call. Zero values leave the
// provider's default in place.
type GenerateOptions struct {
	System      string
	MaxTokens   int
	Temperature float64
	StopWords   []string
}

// ChatMessage is one turn; Role is "system", "user" or "assistant".
type ChatMessage struct {
	Role    string
	Content string
}

// ChatOptions tunes one Chat call.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64
}

// LLMProvider pairs a service with the provider name reported in answers.
type LLMProvider struct {
	Name    string
	Service LLMService
}
