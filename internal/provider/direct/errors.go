package direct

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// apiErrorResponse is the gateway's error body.
type apiErrorResponse struct {
	Error struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// handleErrorResponse converts a non-200 gateway response into a
// categorized error.
func handleErrorResponse(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return ai.NewStatusError(
		fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, msg),
		resp.StatusCode,
		ai.ParseRetryAfter(resp.Header.Get("Retry-After")),
		nil,
	)
}
