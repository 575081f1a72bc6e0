package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/client"
	"github.com/astrohackerx/spl402-OpenRouter/fallback"
	"github.com/astrohackerx/spl402-OpenRouter/internal/gatewaytest"
	"github.com/astrohackerx/spl402-OpenRouter/prompt"
	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

var freeChain = tier.DefaultPolicy().FallbackChain("free")

func newGatewayRouter(t *testing.T, opts ...Option) (*gatewaytest.Server, http.Handler) {
	t.Helper()
	gw := gatewaytest.New(t)
	c := client.New(client.Config{APIKey: "sk-or-test", BaseURL: gw.URL, Timeout: 5 * time.Second})
	return gw, NewRouter(c, opts...)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestCodeEndpoint(t *testing.T) {
	gw, h := newGatewayRouter(t)
	gw.On(tier.ModelGPT4oMini, gatewaytest.Reply{
		Body: gatewaytest.Completion(tier.ModelGPT4oMini, "def fib(n): ...", 20, 40),
	})

	w := do(t, h, http.MethodPost, "/api/code",
		`{"prompt":"fibonacci function","language":"python","tier":"premium"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, tier.ModelGPT4oMini, calls[0].Model)
	assert.Equal(t, []string{"system", "user"}, calls[0].Roles())
	assert.Contains(t, calls[0].Text(0), "expert programmer")
	assert.Equal(t, "Generate python code: fibonacci function", calls[0].Text(1))
	assert.Equal(t, prompt.CodeMaxTokens, calls[0].MaxTokens)

	body := decodeBody(t, w)
	assert.Equal(t, "def fib(n): ...", body["content"])
	assert.Equal(t, tier.ModelGPT4oMini, body["model"])
	assert.Equal(t, "python", body["language"])
	assert.Equal(t, "premium", body["tier"])
	assert.EqualValues(t, 60, body["tokensUsed"])
	assert.EqualValues(t, 20, body["promptTokens"])
	assert.EqualValues(t, 40, body["completionTokens"])
	assert.GreaterOrEqual(t, body["responseTime"].(float64), 0.0)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAnalyzeEndpointWalksFreeChain(t *testing.T) {
	gw, h := newGatewayRouter(t)
	gw.On(freeChain[0], gatewaytest.Reply{
		Status: http.StatusTooManyRequests,
		Body:   gatewaytest.ErrorBody(429, "Rate limit exceeded: free-models-per-min"),
	})
	gw.On(freeChain[1], gatewaytest.Reply{
		Body: gatewaytest.Completion(freeChain[1], "positive", 10, 2),
	})

	w := do(t, h, http.MethodPost, "/api/analyze",
		`{"text":"I love this product","task":"sentiment","tier":"free"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, []string{freeChain[0], freeChain[0], freeChain[1]}, gw.Models())
	last := gw.Calls()[2]
	assert.Equal(t, prompt.AnalystPersona, last.Text(0))
	assert.True(t, strings.HasPrefix(last.Text(1), prompt.AnalysisTemplate(prompt.TaskSentiment)))

	body := decodeBody(t, w)
	assert.Equal(t, "sentiment", body["task"])
	assert.Equal(t, freeChain[1], body["model"])
	assert.Equal(t, "free", body["tier"])
}

func TestAnalyzeEndpointExhausted(t *testing.T) {
	gw, h := newGatewayRouter(t)
	for _, m := range freeChain {
		gw.On(m, gatewaytest.Reply{Status: http.StatusTooManyRequests})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"text":"x","tier":"free"}`))
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, KindExhausted, body["error"])
	assert.Contains(t, body["message"], "429")
	assert.Contains(t, body, "responseTime")
	assert.Equal(t, "req-42", body["requestId"])
	assert.Len(t, gw.Calls(), 1+len(freeChain))
}

func TestGenerateEndpoint(t *testing.T) {
	gw, h := newGatewayRouter(t)

	w := do(t, h, http.MethodPost, "/api/generate",
		`{"prompt":"launch day","contentType":"blog post","tone":"upbeat","tier":"ultra-premium"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	call := gw.Calls()[0]
	assert.Equal(t, tier.ModelClaudeSonnet, call.Model)
	assert.Equal(t, "Generate blog post: launch day\nTone: upbeat", call.Text(1))
	assert.Equal(t, prompt.GenerateMaxTokens, call.MaxTokens)

	body := decodeBody(t, w)
	assert.Equal(t, "blog post", body["contentType"])
	assert.Equal(t, "upbeat", body["tone"])
}

func TestVisionEndpoint(t *testing.T) {
	t.Run("missing image fails before dispatch", func(t *testing.T) {
		gw, h := newGatewayRouter(t)

		w := do(t, h, http.MethodPost, "/api/vision", `{"prompt":"what is this?","tier":"premium"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, KindValidation, body["error"])
		assert.Contains(t, body["message"], "imageUrl")
		assert.Empty(t, gw.Calls())
	})

	t.Run("inline image", func(t *testing.T) {
		gw, h := newGatewayRouter(t)

		w := do(t, h, http.MethodPost, "/api/vision",
			`{"prompt":"describe","imageBase64":"aGVsbG8=","tier":"enterprise","maxTokens":100}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		call := gw.Calls()[0]
		assert.True(t, call.HasImage())
		assert.Equal(t, 100, call.MaxTokens)
		assert.Equal(t, true, decodeBody(t, w)["hasImage"])
	})
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		kind    string
		message string
	}{
		{"code without prompt", "/api/code", `{"tier":"free"}`, 400, KindValidation, "prompt is required"},
		{"code without tier", "/api/code", `{"prompt":"x"}`, 400, KindValidation, "tier is required"},
		{"analyze blank text", "/api/analyze", `{"text":"  ","tier":"free"}`, 400, KindValidation, "text is required"},
		{"generate without tier", "/api/generate", `{"prompt":"x"}`, 400, KindValidation, "tier is required"},
		{"vision without prompt", "/api/vision", `{"imageUrl":"https://x/y.png","tier":"free"}`, 400, KindValidation, "prompt is required"},
		{"negative max tokens", "/api/code", `{"prompt":"x","tier":"free","maxTokens":-1}`, 400, KindValidation, "maxTokens"},
		{"chat without messages", "/api/chat", `{"tier":"free"}`, 400, KindValidation, "messages is required"},
		{"chat messages not a list", "/api/chat", `{"messages":"hello"}`, 400, KindValidation, "must be an array"},
		{"chat messages empty", "/api/chat", `{"messages":[]}`, 400, KindValidation, "must not be empty"},
		{"chat bad role", "/api/chat", `{"messages":[{"role":"tool","content":"x"}]}`, 400, KindValidation, "role"},
		{"chat bad part", "/api/chat", `{"messages":[{"role":"user","content":[{"type":"audio"}]}]}`, 400, KindValidation, "unsupported type"},
		{"chat null content", "/api/chat", `{"messages":[{"role":"user","content":null}]}`, 400, KindValidation, "content is required"},
		{"chat missing content", "/api/chat", `{"messages":[{"role":"user"}]}`, 400, KindValidation, "content is required"},
		{"chat blank content", "/api/chat", `{"messages":[{"role":"user","content":"  "}]}`, 400, KindValidation, "content is required"},
		{"chat no parts", "/api/chat", `{"messages":[{"role":"user","content":[]}]}`, 400, KindValidation, "content is required"},
		{"chat blank text part", "/api/chat", `{"messages":[{"role":"user","content":[{"type":"text","text":""}]}]}`, 400, KindValidation, "text is required"},
		{"chat parts on system", "/api/chat", `{"messages":[{"role":"system","content":[{"type":"text","text":"x"}]}]}`, 400, KindValidation, "must be a string for role system"},
		{"invalid json", "/api/code", `{"prompt":`, 400, KindInvalidJSON, "invalid JSON"},
		{"trailing data", "/api/code", `{"prompt":"x","tier":"free"} junk`, 400, KindInvalidJSON, "unexpected data after JSON value"},
		{"second value", "/api/code", `{"prompt":"x","tier":"free"}{"prompt":"y"}`, 400, KindInvalidJSON, "unexpected data after JSON value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, h := newGatewayRouter(t)

			w := do(t, h, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())

			body := decodeBody(t, w)
			assert.Equal(t, tt.kind, body["error"])
			assert.Contains(t, body["message"], tt.message)
			assert.Empty(t, gw.Calls())
		})
	}
}

func TestChatEndpoint(t *testing.T) {
	t.Run("tier defaults to free and messages pass through", func(t *testing.T) {
		gw, h := newGatewayRouter(t)

		w := do(t, h, http.MethodPost, "/api/chat", `{"messages":[
			{"role":"system","content":"be brief"},
			{"role":"user","content":[{"type":"text","text":"what is this?"},{"type":"image_url","image_url":{"url":"https://x/cat.png"}}]}
		]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		call := gw.Calls()[0]
		assert.Equal(t, freeChain[0], call.Model)
		assert.Equal(t, []string{"system", "user"}, call.Roles())
		assert.Equal(t, "be brief", call.Text(0))
		assert.True(t, call.HasImage())
		assert.Zero(t, call.MaxTokens)

		body := decodeBody(t, w)
		assert.Equal(t, "free", body["tier"])
		assert.NotContains(t, body, "language")
	})

	t.Run("missing api key is a configuration error", func(t *testing.T) {
		h := NewRouter(client.New(client.Config{}))

		w := do(t, h, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"hi"}]}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, KindConfiguration, decodeBody(t, w)["error"])
	})
}

func TestChatStream(t *testing.T) {
	t.Run("deltas then sentinel", func(t *testing.T) {
		gw, h := newGatewayRouter(t)
		gw.On(tier.ModelGPT4o, gatewaytest.Reply{Deltas: []string{"Hel", "lo"}})

		w := do(t, h, http.MethodPost, "/api/chat",
			`{"messages":[{"role":"user","content":"hi"}],"tier":"enterprise","stream":true}`)
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		assert.Equal(t,
			"data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n",
			w.Body.String())
		assert.True(t, gw.Calls()[0].Stream)
	})

	t.Run("zero deltas emit only the sentinel", func(t *testing.T) {
		_, h := newGatewayRouter(t)

		w := do(t, h, http.MethodPost, "/api/chat",
			`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "data: [DONE]\n\n", w.Body.String())
	})

	t.Run("rejected stream is a json error", func(t *testing.T) {
		gw, h := newGatewayRouter(t)
		gw.On(freeChain[0], gatewaytest.Reply{Status: http.StatusTooManyRequests})

		w := do(t, h, http.MethodPost, "/api/chat",
			`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
		require.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, KindDispatch, decodeBody(t, w)["error"])
		// Streams never fall back to another model.
		assert.Equal(t, []string{freeChain[0], freeChain[0]}, gw.Models())
	})

	t.Run("mid-stream fault ends with error frame and sentinel", func(t *testing.T) {
		svc := &stubService{chunks: []ai.StreamChunk{
			{Delta: "par"},
			{Err: errors.New("connection reset")},
		}}
		h := NewRouter(svc)

		w := do(t, h, http.MethodPost, "/api/chat",
			`{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t,
			"data: {\"content\":\"par\"}\n\n"+
				"data: {\"error\":\"stream_error\",\"message\":\"connection reset\"}\n\n"+
				"data: [DONE]\n\n",
			w.Body.String())
	})
}

func TestHealth(t *testing.T) {
	for _, configured := range []bool{true, false} {
		h := NewRouter(&stubService{configured: configured})

		w := do(t, h, http.MethodGet, "/health", "")
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, configured, body["gatewayConfigured"])
	}
}

func TestTiers(t *testing.T) {
	h := NewRouter(&stubService{})

	w := do(t, h, http.MethodGet, "/api/tiers", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body tiersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tiers, len(tier.All))
	assert.Equal(t, "free", body.Tiers[0].Tier)
	assert.Equal(t, freeChain, body.Tiers[0].Fallback)
	assert.Equal(t, tier.ModelGPT4o, body.Tiers[3].Model)
	assert.Empty(t, body.Tiers[3].Fallback)
	assert.Equal(t, Routes, body.Routes)
}

func TestGate(t *testing.T) {
	var gated []string
	gate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := RouteFor(r.URL.Path)
			require.True(t, ok)
			gated = append(gated, route.Capability)
			if r.Header.Get("X-Payment") == "" {
				writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: "payment_required", Message: "pay first"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	svc := &stubService{}
	h := NewRouter(svc, WithGate(gate))

	w := do(t, h, http.MethodPost, "/api/code", `{"prompt":"x","tier":"premium"}`)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Zero(t, svc.completes)

	w = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{CapabilityCode}, gated)
}

func TestMiddleware(t *testing.T) {
	t.Run("request id is propagated", func(t *testing.T) {
		h := NewRouter(&stubService{})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("cors preflight", func(t *testing.T) {
		h := NewRouter(&stubService{}, WithCORSOrigin("https://app.example"))
		w := do(t, h, http.MethodOptions, "/api/chat", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("oversized body", func(t *testing.T) {
		h := NewRouter(&stubService{}, WithMaxBodyBytes(16))
		w := do(t, h, http.MethodPost, "/api/code", `{"prompt":"a long enough prompt","tier":"free"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("panics are recovered", func(t *testing.T) {
		h := NewRouter(&stubService{panics: true})
		w := do(t, h, http.MethodPost, "/api/code", `{"prompt":"x","tier":"free"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestDecodeAllowsTrailingWhitespace(t *testing.T) {
	svc := &stubService{}
	w := do(t, NewRouter(svc), http.MethodPost, "/api/code", "{\"prompt\":\"x\",\"tier\":\"free\"}\n  \n")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, svc.completes)
}

func TestDispatchValidationIsBadRequest(t *testing.T) {
	h := NewRouter(&stubService{err: ai.ErrEmptyInput})
	w := do(t, h, http.MethodPost, "/api/code", `{"prompt":"x","tier":"free"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, KindValidation, decodeBody(t, w)["error"])
}

func TestDispatchKind(t *testing.T) {
	assert.Equal(t, KindCancelled, dispatchKind(context.Canceled))
	assert.Equal(t, KindConfiguration, dispatchKind(&client.ErrMissingAPIKey{}))
	assert.Equal(t, KindExhausted, dispatchKind(&fallback.ExhaustedError{
		Attempts: []*fallback.AttemptError{{Model: "a", Err: errors.New("x")}, {Model: "b", Err: errors.New("y")}},
	}))
	assert.Equal(t, KindValidation, dispatchKind(ai.ErrEmptyInput))
	assert.Equal(t, KindValidation, dispatchKind(ai.Missing("prompt")))
	assert.Equal(t, KindDispatch, dispatchKind(errors.New("boom")))
}

// stubService is a scripted Service.
type stubService struct {
	configured bool
	chunks     []ai.StreamChunk
	panics     bool
	err        error
	completes  int
}

func (s *stubService) Complete(ctx context.Context, req ai.Request) (*ai.Result, error) {
	s.completes++
	if s.panics {
		panic("dispatcher bug")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ai.Result{Content: "stub", Model: "stub/model"}, nil
}

func (s *stubService) Stream(ctx context.Context, req ai.Request) (<-chan ai.StreamChunk, error) {
	ch := make(chan ai.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (s *stubService) Configured() bool { return s.configured }

func (s *stubService) Policy() *tier.Policy { return tier.DefaultPolicy() }
