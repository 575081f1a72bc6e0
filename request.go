package spl402

// Request is a single dispatch unit handed to the dispatcher.
// It is built per inbound HTTP request and consumed exactly once.
type Request struct {
	Messages []Message
	// Tier is the raw tier identifier supplied by the caller.
	// Unrecognized values resolve to the free tier.
	Tier string
	// MaxTokens bounds the output length. Zero leaves it to the provider.
	MaxTokens int
	Stream    bool
}

// Usage contains token usage information for a request.
type Usage struct {
	TotalTokens      int `json:"tokensUsed"`
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

// NewUsage builds a Usage, deriving the total from its parts when the
// provider did not report one.
func NewUsage(total, prompt, completion int) Usage {
	if total == 0 {
		total = prompt + completion
	}
	return Usage{
		TotalTokens:      total,
		PromptTokens:     prompt,
		CompletionTokens: completion,
	}
}

// Result is the normalized output of a completed dispatch.
type Result struct {
	Content string `json:"content"`
	// Model is the model that actually produced the output. It may differ
	// from the tier default when fallback occurred.
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// StreamChunk is an incremental unit of streamed output.
type StreamChunk struct {
	// Delta contains the incremental content for this chunk.
	Delta string
	// Done marks the end of the stream. It is sent exactly once on success.
	Done bool
	// Model is the model serving the stream, set on the Done chunk.
	Model string
	// Err contains a fault that terminated the stream early.
	Err error
}
