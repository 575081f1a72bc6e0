// Package gatewaytest provides an in-process fake of the remote model gateway
// for tests.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// Reply scripts the gateway's answer for one model.
type Reply struct {
	// Status defaults to 200.
	Status int
	// Body is encoded as JSON. When nil on a 200, a completion echoing the
	// model is returned.
	Body any
	// RetryAfter sets the Retry-After header.
	RetryAfter string
	// Deltas are streamed as chunks when the request asks for a stream.
	Deltas []string
	// Delay is slept before answering.
	Delay time.Duration
	// DeltaDelay is slept between streamed deltas.
	DeltaDelay time.Duration
	// Raw, when set, is written verbatim instead of Body.
	Raw string
}

// Call is a recorded request.
type Call struct {
	Path          string
	Authorization string
	Model         string
	Stream        bool
	MaxTokens     int
	Messages      []map[string]any
	Header        http.Header
}

// Server is a scripted fake gateway.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	replies map[string]Reply
	calls   []Call
}

// New starts a fake gateway that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{replies: make(map[string]Reply)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// On scripts the reply for model.
func (s *Server) On(model string, r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[model] = r
}

// Calls returns the recorded requests in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Models returns the model of each recorded request in order.
func (s *Server) Models() []string {
	calls := s.Calls()
	models := make([]string, len(calls))
	for i, c := range calls {
		models[i] = c.Model
	}
	return models
}

// Completion builds a well-formed completion body.
func Completion(model, content string, prompt, completion int) map[string]any {
	return map[string]any{
		"id":      "gen-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   model,
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
}

// ErrorBody builds a gateway error body.
func ErrorBody(code int, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{"code": code, "message": message},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req struct {
		Model     string           `json:"model"`
		Stream    bool             `json:"stream"`
		MaxTokens int              `json:"max_tokens"`
		Messages  []map[string]any `json:"messages"`
	}
	_ = json.Unmarshal(body, &req)

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Model:         req.Model,
		Stream:        req.Stream,
		MaxTokens:     req.MaxTokens,
		Messages:      req.Messages,
		Header:        r.Header.Clone(),
	})
	reply, ok := s.replies[req.Model]
	s.mu.Unlock()

	if !ok {
		reply = Reply{}
	}
	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if reply.RetryAfter != "" {
		w.Header().Set("Retry-After", reply.RetryAfter)
	}
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}

	if status == http.StatusOK && req.Stream {
		s.stream(w, r, req.Model, reply)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if reply.Raw != "" {
		io.WriteString(w, reply.Raw)
		return
	}
	payload := reply.Body
	if payload == nil && status == http.StatusOK {
		payload = Completion(req.Model, "echo from "+req.Model, 3, 4)
	}
	if payload == nil {
		payload = ErrorBody(status, http.StatusText(status))
	}
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, model string, reply Reply) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	if reply.Raw != "" {
		io.WriteString(w, reply.Raw)
		return
	}

	for i, delta := range reply.Deltas {
		if i > 0 && reply.DeltaDelay > 0 {
			select {
			case <-time.After(reply.DeltaDelay):
			case <-r.Context().Done():
				return
			}
		}
		chunk := map[string]any{
			"id":      "gen-test",
			"object":  "chat.completion.chunk",
			"created": 1700000000,
			"model":   model,
			"choices": []map[string]any{
				{"index": 0, "delta": map[string]any{"content": delta}},
			},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	io.WriteString(w, "data: [DONE]\n\n")
}

// Roles returns the role of each message of a recorded call.
func (c Call) Roles() []string {
	roles := make([]string, len(c.Messages))
	for i, m := range c.Messages {
		roles[i], _ = m["role"].(string)
	}
	return roles
}

// Text returns the string content of message i, or "".
func (c Call) Text(i int) string {
	if i >= len(c.Messages) {
		return ""
	}
	s, _ := c.Messages[i]["content"].(string)
	return s
}

// HasImage reports whether any message carries an image_url part.
func (c Call) HasImage() bool {
	for _, m := range c.Messages {
		parts, ok := m["content"].([]any)
		if !ok {
			continue
		}
		for _, p := range parts {
			if pm, ok := p.(map[string]any); ok && strings.EqualFold(fmt.Sprint(pm["type"]), "image_url") {
				return true
			}
		}
	}
	return false
}
