// Package gemini provides an LLM service adapter for Google's Gemini
// models over the Generative Language REST API.
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/googleai"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Gemini LLM service.
type Config struct {
	// APIKey is the Google AI Studio API key (required).
	APIKey string

	// Model is the model to use (default: gemini-1.5-flash).
	Model string

	// Endpoint overrides the API root.
	Endpoint string

	// Timeout bounds each API call (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
}

// LLMService provides LLM operations using Gemini models.
type LLMService struct {
	client *googleai.Client
	model  string
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     float64  `json:"temperature"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateRequest struct {
	Contents          []*googleai.Content `json:"contents"`
	SystemInstruction *googleai.Content   `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig    `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *googleai.Content `json:"content"`
		FinishReason string            `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// NewLLMService creates a new Gemini LLM service.
func NewLLMService(_ context.Context, cfg Config) (*LLMService, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	client, err := googleai.NewClient(googleai.Config{
		APIKey:            cfg.APIKey,
		Endpoint:          cfg.Endpoint,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	return &LLMService{client: client, model: googleai.ModelPath(cfg.Model)}, nil
}

// Generate produces a completion for a single prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	req := generateRequest{
		Contents: []*googleai.Content{googleai.TextContent("user", prompt)},
		GenerationConfig: generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
			StopSequences:   opts.StopWords,
		},
	}
	if opts.System != "" {
		req.SystemInstruction = googleai.TextContent("", opts.System)
	}
	return s.generate(ctx, req)
}

// Chat maps the assistant role to Gemini's "model" role; system messages
// become the system instruction.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := generateRequest{
		GenerationConfig: generationConfig{MaxOutputTokens: opts.MaxTokens, Temperature: opts.Temperature},
	}
	var system []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, msg.Content)
		case "assistant":
			req.Contents = append(req.Contents, googleai.TextContent("model", msg.Content))
		default:
			req.Contents = append(req.Contents, googleai.TextContent("user", msg.Content))
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = googleai.TextContent("", strings.Join(system, "\n\n"))
	}
	return s.generate(ctx, req)
}

func (s *LLMService) generate(ctx context.Context, req generateRequest) (string, error) {
	var resp generateResponse
	if err := s.client.Call(ctx, s.model, "generateContent", req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini: no candidates returned")
	}
	text := resp.Candidates[0].Content.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response (finish reason %s)", resp.Candidates[0].FinishReason)
	}
	return text, nil
}

// ModelName returns the bare model name.
func (s *LLMService) ModelName() string {
	return strings.TrimPrefix(s.model, "models/")
}

// Ping fetches the model's metadata.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.client.Model(ctx, s.model); err != nil {
		return fmt.Errorf("gemini: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
