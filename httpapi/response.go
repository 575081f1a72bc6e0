package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/fallback"
)

// Error kinds reported in the error field of error payloads.
const (
	KindInvalidJSON   = "invalid_json"
	KindValidation    = "validation_error"
	KindConfiguration = "configuration_error"
	KindExhausted     = "models_exhausted"
	KindDispatch      = "dispatch_error"
	KindCancelled     = "request_cancelled"
	KindStream        = "stream_error"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	ResponseTime *int64 `json:"responseTime,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

// completion is the body of a successful non-streamed request.
type completion map[string]any

func newCompletion(res *ai.Result, tierName string, elapsed time.Duration) completion {
	return completion{
		"content":          res.Content,
		"model":            res.Model,
		"tokensUsed":       res.Usage.TotalTokens,
		"promptTokens":     res.Usage.PromptTokens,
		"completionTokens": res.Usage.CompletionTokens,
		"responseTime":     elapsed.Milliseconds(),
		"tier":             tierName,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func writeValidation(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: KindValidation, Message: err.Error()})
}

// writeDispatchError reports a failed dispatch. elapsed is included so
// callers can see how long the fallback loop ran, and the request id so the
// failure can be matched to the server logs.
func writeDispatchError(w http.ResponseWriter, r *http.Request, err error, elapsed time.Duration) {
	status := http.StatusInternalServerError
	kind := dispatchKind(err)
	if kind == KindValidation {
		status = http.StatusBadRequest
	}

	ms := elapsed.Milliseconds()
	writeJSON(w, status, errorResponse{
		Error:        kind,
		Message:      err.Error(),
		ResponseTime: &ms,
		RequestID:    RequestIDFrom(r.Context()),
	})
}

// dispatchKind classifies a dispatch failure for the error payload.
func dispatchKind(err error) string {
	var ce ai.CategorizedError
	switch {
	case ai.IsValidation(err), errors.Is(err, ai.ErrEmptyInput):
		return KindValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case fallback.IsExhausted(err):
		return KindExhausted
	case errors.As(err, &ce) && ce.Category() == ai.ErrorConfiguration:
		return KindConfiguration
	default:
		return KindDispatch
	}
}
