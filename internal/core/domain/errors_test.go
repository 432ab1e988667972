package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProviderError_ClassifiesTimeout(t *testing.T) {
	err := NewProviderError("openai", "embed", fmt.Errorf("send request: %w", context.DeadlineExceeded))

	assert.ErrorIs(t, err, ErrProviderTimeout)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "openai embed")
}

func TestNewProviderError_ClassifiesUnavailable(t *testing.T) {
	cause := errors.New("status 500")
	err := NewProviderError("anthropic", "generate", cause)

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, cause)

	var pe *ProviderError
	assert.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &pe))
	assert.Equal(t, "anthropic", pe.Provider)
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(fmt.Errorf("%w: empty", ErrInvalidQuery))

	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "invalid query: empty", resp.Message)
}
