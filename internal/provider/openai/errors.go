package openai

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// wrapError wraps an SDK error with gateway error categorization.
// It extracts status codes and Retry-After headers.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// Network-level failure or context cancellation.
		return fmt.Errorf("gateway request: %w", err)
	}

	return ai.NewStatusError(
		fmt.Sprintf("gateway returned %d", apiErr.StatusCode),
		apiErr.StatusCode,
		parseRetryAfter(apiErr.Response),
		err,
	)
}

// parseRetryAfter extracts the Retry-After duration from an HTTP response.
// Returns 0 if the header is not present or cannot be parsed.
func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	return ai.ParseRetryAfter(resp.Header.Get("Retry-After"))
}
