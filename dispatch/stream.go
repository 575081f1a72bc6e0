package dispatch

import (
	"context"
	"io"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// ExecuteStream opens a streamed completion for the tier's model.
//
// Streams never fall back to another model. The transport chain only covers
// establishing the stream: once a transport has accepted it, a later fault
// is delivered as the final chunk's Err. The returned channel always ends
// with exactly one chunk that has Done set or Err non-nil, unless ctx is
// cancelled first.
func (d *Dispatcher) ExecuteStream(ctx context.Context, req ai.Request) (<-chan ai.StreamChunk, error) {
	if len(req.Messages) == 0 {
		return nil, ai.ErrEmptyInput
	}
	if len(d.stages) == 0 {
		return nil, ErrNoTransports
	}

	model := d.policy.ModelFor(req.Tier)
	var lastErr error
	for i, st := range d.stages {
		log := d.logger.With("transport", st.Transport.Name(), "tier", d.policy.Resolve(req.Tier), "model", model)

		src, err := st.Transport.Stream(ctx, model, req)
		if err == nil {
			log.Debug("stream established")
			out := make(chan ai.StreamChunk)
			go terminate(ctx, src, model, out)
			return out, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		if i < len(d.stages)-1 {
			log.Warn("stream establishment failed, trying next transport",
				"next", d.stages[i+1].Transport.Name(),
				"error", err,
			)
		} else {
			log.Error("stream establishment failed", "error", err)
		}
	}
	return nil, lastErr
}

// terminate relays src to out and guarantees a single terminal chunk.
func terminate(ctx context.Context, src <-chan ai.StreamChunk, model string, out chan<- ai.StreamChunk) {
	defer close(out)

	send := func(chunk ai.StreamChunk) bool {
		select {
		case out <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for chunk := range src {
		switch {
		case chunk.Err != nil:
			send(ai.StreamChunk{Err: chunk.Err})
			go drain(src)
			return
		case chunk.Done:
			if chunk.Model == "" {
				chunk.Model = model
			}
			send(ai.StreamChunk{Done: true, Model: chunk.Model})
			go drain(src)
			return
		case chunk.Delta != "":
			if !send(ai.StreamChunk{Delta: chunk.Delta}) {
				go drain(src)
				return
			}
		}
	}

	if ctx.Err() == nil {
		send(ai.StreamChunk{Err: io.ErrUnexpectedEOF})
	}
}

// drain consumes the rest of src so its producer can exit.
func drain(src <-chan ai.StreamChunk) {
	for range src {
	}
}
