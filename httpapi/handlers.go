package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/prompt"
)

type chatRequest struct {
	Messages  json.RawMessage `json:"messages"`
	Tier      string          `json:"tier"`
	Stream    bool            `json:"stream"`
	MaxTokens int             `json:"maxTokens"`
}

type codeRequest struct {
	Prompt    string `json:"prompt"`
	Language  string `json:"language"`
	Tier      string `json:"tier"`
	MaxTokens int    `json:"maxTokens"`
}

type analyzeRequest struct {
	Text      string `json:"text"`
	Task      string `json:"task"`
	Tier      string `json:"tier"`
	MaxTokens int    `json:"maxTokens"`
}

type generateRequest struct {
	Prompt      string `json:"prompt"`
	ContentType string `json:"contentType"`
	Tone        string `json:"tone"`
	Tier        string `json:"tier"`
	MaxTokens   int    `json:"maxTokens"`
}

type visionRequest struct {
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
	Tier        string `json:"tier"`
	MaxTokens   int    `json:"maxTokens"`
}

var errTrailingData = errors.New("unexpected data after JSON value")

// decode reads a JSON body into v. It writes the error response itself and
// reports whether the handler should continue.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(v)
	if err == nil {
		// The body must hold exactly one JSON value.
		if extra := dec.Decode(&json.RawMessage{}); !errors.Is(extra, io.EOF) {
			err = errTrailingData
			if extra != nil {
				err = fmt.Errorf("%w: %w", errTrailingData, extra)
			}
		}
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error:   KindValidation,
				Message: "request body too large",
			})
			return false
		}
		h.loggerFrom(r.Context()).Warn("invalid request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   KindInvalidJSON,
			Message: "invalid JSON body: " + err.Error(),
		})
		return false
	}
	return true
}

// requireFields returns the first missing field as a validation error.
func requireFields(fields ...[2]string) error {
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			return ai.Missing(f[0])
		}
	}
	return nil
}

// maxTokens applies a capability default when the caller supplies none.
func maxTokens(n, def int) (int, error) {
	if n < 0 {
		return 0, &ai.ValidationError{Field: "maxTokens", Msg: "maxTokens must not be negative"}
	}
	if n == 0 {
		return def, nil
	}
	return n, nil
}

// complete dispatches req and writes the completion with the echo fields.
func (h *handler) complete(w http.ResponseWriter, r *http.Request, capability string, req ai.Request, echo completion) {
	tierName := string(h.svc.Policy().Resolve(req.Tier))
	log := h.loggerFrom(r.Context()).With("capability", capability, "tier", tierName)

	start := time.Now()
	res, err := h.svc.Complete(r.Context(), req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("dispatch failed", "error", err, "duration_ms", elapsed.Milliseconds())
		writeDispatchError(w, r, err, elapsed)
		return
	}

	body := newCompletion(res, tierName, elapsed)
	for k, v := range echo {
		body[k] = v
	}
	log.Info("dispatch completed",
		"model", res.Model,
		"tokens", res.Usage.TotalTokens,
		"duration_ms", elapsed.Milliseconds(),
	)
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if !h.decode(w, r, &in) {
		return
	}

	messages, err := parseMessages(in.Messages)
	if err != nil {
		writeValidation(w, err)
		return
	}
	limit, err := maxTokens(in.MaxTokens, 0)
	if err != nil {
		writeValidation(w, err)
		return
	}

	req := ai.Request{
		Messages:  prompt.Chat(messages),
		Tier:      in.Tier,
		MaxTokens: limit,
		Stream:    in.Stream,
	}
	if req.Tier == "" {
		req.Tier = "free"
	}

	if in.Stream {
		h.stream(w, r, req)
		return
	}
	h.complete(w, r, CapabilityChat, req, nil)
}

func (h *handler) handleCode(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := requireFields([2]string{"prompt", in.Prompt}, [2]string{"tier", in.Tier}); err != nil {
		writeValidation(w, err)
		return
	}
	limit, err := maxTokens(in.MaxTokens, prompt.CodeMaxTokens)
	if err != nil {
		writeValidation(w, err)
		return
	}

	h.complete(w, r, CapabilityCode, ai.Request{
		Messages:  prompt.Code(in.Prompt, in.Language),
		Tier:      in.Tier,
		MaxTokens: limit,
	}, completion{"language": in.Language})
}

func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in analyzeRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := requireFields([2]string{"text", in.Text}, [2]string{"tier", in.Tier}); err != nil {
		writeValidation(w, err)
		return
	}
	limit, err := maxTokens(in.MaxTokens, prompt.AnalyzeMaxTokens)
	if err != nil {
		writeValidation(w, err)
		return
	}

	h.complete(w, r, CapabilityAnalyze, ai.Request{
		Messages:  prompt.Analyze(in.Text, in.Task),
		Tier:      in.Tier,
		MaxTokens: limit,
	}, completion{"task": in.Task})
}

func (h *handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in generateRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := requireFields([2]string{"prompt", in.Prompt}, [2]string{"tier", in.Tier}); err != nil {
		writeValidation(w, err)
		return
	}
	limit, err := maxTokens(in.MaxTokens, prompt.GenerateMaxTokens)
	if err != nil {
		writeValidation(w, err)
		return
	}

	h.complete(w, r, CapabilityGenerate, ai.Request{
		Messages:  prompt.Generate(in.Prompt, in.ContentType, in.Tone),
		Tier:      in.Tier,
		MaxTokens: limit,
	}, completion{"contentType": in.ContentType, "tone": in.Tone})
}

func (h *handler) handleVision(w http.ResponseWriter, r *http.Request) {
	var in visionRequest
	if !h.decode(w, r, &in) {
		return
	}
	if err := requireFields([2]string{"prompt", in.Prompt}); err != nil {
		writeValidation(w, err)
		return
	}
	if strings.TrimSpace(in.ImageURL) == "" && strings.TrimSpace(in.ImageBase64) == "" {
		writeValidation(w, &ai.ValidationError{Field: "image", Msg: "imageUrl or imageBase64 is required"})
		return
	}
	if err := requireFields([2]string{"tier", in.Tier}); err != nil {
		writeValidation(w, err)
		return
	}
	limit, err := maxTokens(in.MaxTokens, prompt.VisionMaxTokens)
	if err != nil {
		writeValidation(w, err)
		return
	}

	h.complete(w, r, CapabilityVision, ai.Request{
		Messages:  prompt.Vision(in.Prompt, strings.TrimSpace(in.ImageURL), strings.TrimSpace(in.ImageBase64)),
		Tier:      in.Tier,
		MaxTokens: limit,
	}, completion{"hasImage": true})
}
