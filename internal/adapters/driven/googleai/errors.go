package googleai

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Common Generative Language API errors.
var (
	// ErrUnauthorized indicates an invalid or missing API key.
	ErrUnauthorized = errors.New("gemini: unauthorised (invalid API key)")

	// ErrRateLimited indicates the API rate limit or quota was exceeded.
	ErrRateLimited = errors.New("gemini: rate limit exceeded")

	// ErrNotFound indicates the model does not exist.
	ErrNotFound = errors.New("gemini: model not found")
)

// WrapError converts a Google API error into one of the package errors,
// keeping the original message.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch gerr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, gerr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
	default:
		return err
	}
}
