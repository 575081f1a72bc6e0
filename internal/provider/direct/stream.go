package direct

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// streamChunk is a single chunk of a streamed completion.
type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// doneMarker terminates a gateway stream.
var doneMarker = []byte("[DONE]")

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{reader: bufio.NewReader(r)}
}

// ReadEvent returns the data of the next event.
// Comment lines (keep-alives) and fields other than data are skipped.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
	}
}

// Stream opens a streamed completion against model.
func (c *Client) Stream(ctx context.Context, model string, r ai.Request) (<-chan ai.StreamChunk, error) {
	req, err := c.newRequest(ctx, model, r, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := readResponse(resp)
		return nil, handleErrorResponse(resp, body)
	}

	ch := make(chan ai.StreamChunk)
	go processStream(ctx, resp.Body, model, ch)
	return ch, nil
}

// processStream relays deltas until the done marker, EOF, or a fault.
func processStream(ctx context.Context, body io.ReadCloser, model string, ch chan<- ai.StreamChunk) {
	defer close(ch)
	defer body.Close()

	send := func(chunk ai.StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	reader := NewSSEReader(body)
	served := model
	for {
		data, err := reader.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			send(ai.StreamChunk{Err: fmt.Errorf("read stream: %w", err)})
			return
		}
		if bytes.Equal(data, doneMarker) {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		if chunk.Error != nil {
			send(ai.StreamChunk{Err: fmt.Errorf("gateway stream error: %s", chunk.Error.Message)})
			return
		}
		if chunk.Model != "" {
			served = chunk.Model
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if !send(ai.StreamChunk{Delta: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
	}

	send(ai.StreamChunk{Done: true, Model: served})
}
