// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/apiclient"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.2"
	DefaultLLMTimeout = 30 * time.Second
)

// LLMConfig configures the LLM service. Every field is optional.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

// LLMService implements driven.LLMService over /api/generate and /api/chat.
type LLMService struct {
	api   *apiclient.Client
	model string
}

type options struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	System  string   `json:"system,omitempty"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *options      `json:"options,omitempty"`
}

// reply covers both endpoints: generate fills Response, chat fills Message.
type reply struct {
	Response string      `json:"response"`
	Message  chatMessage `json:"message"`
	Error    string      `json:"error,omitempty"`
}

// NewLLMService fills in defaults. Nothing is contacted until the first call.
func NewLLMService(cfg LLMConfig) *LLMService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	return &LLMService{
		api: apiclient.New(apiclient.Options{
			Provider:          "ollama",
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}),
		model: cfg.Model,
	}
}

// Generate runs a single non-streamed completion.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	r, err := s.call(ctx, "/api/generate", generateRequest{
		Model:  s.model,
		Prompt: prompt,
		System: opts.System,
		Options: &options{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
			Stop:        opts.StopWords,
		},
	})
	if err != nil {
		return "", err
	}
	return r.Response, nil
}

// Chat runs a non-streamed multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	msgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, chatMessage(m))
	}

	r, err := s.call(ctx, "/api/chat", chatRequest{
		Model:    s.model,
		Messages: msgs,
		Options:  &options{NumPredict: opts.MaxTokens, Temperature: opts.Temperature},
	})
	if err != nil {
		return "", err
	}
	return r.Message.Content, nil
}

// call posts req and surfaces errors Ollama reports with a 200 status.
func (s *LLMService) call(ctx context.Context, path string, req any) (*reply, error) {
	var r reply
	if err := s.api.Post(ctx, path, req, &r); err != nil {
		return nil, err
	}
	if r.Error != "" {
		return nil, fmt.Errorf("ollama: %s", r.Error)
	}
	return &r, nil
}

// ModelName returns the configured model.
func (s *LLMService) ModelName() string { return s.model }

// Ping checks the server answers /api/tags.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/api/tags", nil)
}

// Close is a no-op.
func (s *LLMService) Close() error { return nil }
