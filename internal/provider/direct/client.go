// Package direct is the secondary gateway transport. It speaks the
// chat completions protocol with plain HTTP requests, so faults confined to
// the SDK client do not take the service down.
package direct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/prompt"
)

// Name identifies this transport in logs.
const Name = "direct-http"

const (
	// DefaultBaseURL is the gateway API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultTimeout bounds a single call attempt.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize caps non-streamed response bodies.
	MaxResponseSize = 10 * 1024 * 1024
)

// Config configures the direct transport.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds each individual call. Streams are bounded by the
	// request context instead.
	Timeout  time.Duration
	SiteURL  string
	SiteName string
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
}

// Client calls the gateway over plain HTTP.
type Client struct {
	apiKey     string
	baseURL    string
	siteURL    string
	siteName   string
	httpClient *http.Client
	streamHTTP *http.Client
	limiter    *rate.Limiter
}

// New creates a direct transport.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(baseURL, "/"),
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
		httpClient: &http.Client{Transport: transport, Timeout: timeout},
		// No client timeout for streaming - controlled via context.
		streamHTTP: &http.Client{Transport: transport},
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Name returns the transport name.
func (c *Client) Name() string { return Name }

// chatMessage is the wire form of a message. Content is either a string or
// a list of typed parts.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// chatResponse uses pointers so absent fields can be told apart from zeros.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// convertMessages drops messages and parts without content, as the SDK
// transport does, so both transports send the same conversation.
func convertMessages(messages []ai.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if role == "" {
			role = string(ai.RoleUser)
		}
		// Only user messages carry parts.
		if !m.HasParts() || m.Role == ai.RoleSystem || m.Role == ai.RoleAssistant {
			if m.Content != "" {
				out = append(out, chatMessage{Role: role, Content: m.Content})
			}
			continue
		}
		parts := make([]contentPart, 0, len(m.Parts))
		for _, p := range m.Parts {
			switch p.Type {
			case ai.ContentPartTypeText:
				if p.Text != "" {
					parts = append(parts, contentPart{Type: "text", Text: p.Text})
				}
			case ai.ContentPartTypeImage:
				if url := prompt.ImageURL(p); url != "" {
					parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
				}
			}
		}
		if len(parts) > 0 {
			out = append(out, chatMessage{Role: role, Content: parts})
		}
	}
	return out
}

// setHeaders sets the required headers for gateway requests.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if c.siteURL != "" {
		req.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.siteName != "" {
		req.Header.Set("X-Title", c.siteName)
	}
}

func (c *Client) newRequest(ctx context.Context, model string, r ai.Request, stream bool) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("throttle: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  convertMessages(r.Messages),
		Stream:    stream,
		MaxTokens: r.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	return req, nil
}

// Complete sends a conversation to model and returns the normalized result.
func (c *Client) Complete(ctx context.Context, model string, r ai.Request) (*ai.Result, error) {
	req, err := c.newRequest(ctx, model, r, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	return normalize(model, &parsed)
}

// normalize turns a gateway response into a Result with every field present.
func normalize(model string, resp *chatResponse) (*ai.Result, error) {
	if len(resp.Choices) == 0 {
		return nil, ai.ErrMalformedResponse
	}

	res := &ai.Result{Model: resp.Model}
	if res.Model == "" {
		res.Model = model
	}
	if content := resp.Choices[0].Message.Content; content != nil {
		res.Content = *content
	}
	if u := resp.Usage; u != nil {
		res.Usage = ai.NewUsage(u.TotalTokens, u.PromptTokens, u.CompletionTokens)
	}
	return res, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
