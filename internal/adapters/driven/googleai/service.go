// Package googleai is the Generative Language REST client shared by the
// Gemini embedding and LLM adapters.
package googleai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/adapters/driven/apiclient"
)

// DefaultEndpoint is the public Generative Language API root.
const DefaultEndpoint = "https://generativelanguage.googleapis.com"

const apiVersion = "/v1beta/"

// Config holds connection settings for the Generative Language API.
type Config struct {
	// APIKey is the Google AI Studio key.
	APIKey string

	// Endpoint overrides the API root, mainly for tests.
	Endpoint string

	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client calls model methods such as generateContent.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a client. The key travels in the x-goog-api-key
// header rather than the query string so it stays out of proxy logs.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	return &Client{api: apiclient.New(apiclient.Options{
		Provider:          "gemini",
		BaseURL:           cfg.Endpoint,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Header:            map[string]string{"x-goog-api-key": cfg.APIKey},
		DecodeError:       decodeError,
	})}, nil
}

// Call posts in to models/{model}:{method}.
func (c *Client) Call(ctx context.Context, model, method string, in, out any) error {
	return c.api.Post(ctx, apiVersion+ModelPath(model)+":"+method, in, out)
}

// Model fetches the model's metadata. It needs a valid key but runs no
// inference, which makes it the ping.
func (c *Client) Model(ctx context.Context, model string) error {
	return c.api.Get(ctx, apiVersion+ModelPath(model), nil)
}

// decodeError parses Google's error envelope into *googleapi.Error and
// maps it onto the package errors.
func decodeError(resp *http.Response, body []byte) error {
	return WrapError(googleapi.CheckResponseWithBody(resp, body))
}

// ModelPath prefixes a bare model name with "models/".
func ModelPath(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}

// Part is one piece of content; only text is used.
type Part struct {
	Text string `json:"text"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// TextContent wraps text in a single-part Content.
func TextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text concatenates the text of every part.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range c.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}
