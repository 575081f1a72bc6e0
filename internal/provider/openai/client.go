// Package openai is the primary gateway transport. It drives the gateway's
// OpenAI-compatible API through the official openai-go client.
package openai

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// Name identifies this transport in logs.
const Name = "openai-sdk"

// Client wraps the openai-go SDK as a gateway transport.
type Client struct {
	client  *openai.Client
	timeout time.Duration
}

// Config configures the SDK client.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout bounds each Complete call. Streams are bounded by the
	// request context instead.
	Timeout time.Duration
	// SiteURL and SiteName are sent as gateway attribution headers.
	SiteURL  string
	SiteName string
}

// New creates a new SDK-backed transport.
// SDK-level retries are disabled: retrying another model is the
// dispatcher's job, not the transport's. The timeout only applies to
// Complete; streams are bounded by the request context.
func New(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client, timeout: cfg.Timeout}
}

// Name returns the transport name.
func (c *Client) Name() string { return Name }

func buildParams(model string, req ai.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// Complete sends a conversation to model and returns the normalized result.
func (c *Client) Complete(ctx context.Context, model string, req ai.Request) (*ai.Result, error) {
	var opts []option.RequestOption
	if c.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(c.timeout))
	}

	resp, err := c.client.Chat.Completions.New(ctx, buildParams(model, req), opts...)
	if err != nil {
		return nil, wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ai.ErrMalformedResponse
	}

	reported := resp.Model
	if reported == "" {
		reported = model
	}
	return &ai.Result{
		Content: resp.Choices[0].Message.Content,
		Model:   reported,
		Usage: ai.NewUsage(
			int(resp.Usage.TotalTokens),
			int(resp.Usage.PromptTokens),
			int(resp.Usage.CompletionTokens),
		),
	}, nil
}

// Stream opens a streamed completion against model.
// The first event is read before returning so that a rejected request
// surfaces as an error here rather than inside the stream.
func (c *Client) Stream(ctx context.Context, model string, req ai.Request) (<-chan ai.StreamChunk, error) {
	params := buildParams(model, req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	started := stream.Next()
	if !started {
		if err := stream.Err(); err != nil {
			stream.Close()
			return nil, wrapError(err)
		}
	}

	ch := make(chan ai.StreamChunk)
	go relay(ctx, stream, started, model, ch)
	return ch, nil
}

func relay(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], started bool, model string, ch chan<- ai.StreamChunk) {
	defer close(ch)
	defer stream.Close()

	send := func(chunk ai.StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	served := model
	for ok := started; ok; ok = stream.Next() {
		chunk := stream.Current()
		if chunk.Model != "" {
			served = chunk.Model
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if !send(ai.StreamChunk{Delta: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
	}

	if err := stream.Err(); err != nil {
		send(ai.StreamChunk{Err: wrapError(err)})
		return
	}
	send(ai.StreamChunk{Done: true, Model: served})
}
