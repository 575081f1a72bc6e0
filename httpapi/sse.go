package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// DoneSentinel is the data of the frame that ends every stream.
const DoneSentinel = "[DONE]"

type deltaFrame struct {
	Content string `json:"content"`
}

type errorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// stream relays a streamed chat completion as server-sent events.
// Once the first byte is written the response is committed, so later faults
// become an error frame followed by the sentinel.
func (h *handler) stream(w http.ResponseWriter, r *http.Request, req ai.Request) {
	tierName := string(h.svc.Policy().Resolve(req.Tier))
	log := h.loggerFrom(r.Context()).With("capability", CapabilityChat, "tier", tierName, "stream", true)

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   KindStream,
			Message: "streaming not supported",
		})
		return
	}

	start := time.Now()
	chunks, err := h.svc.Stream(r.Context(), req)
	if err != nil {
		elapsed := time.Since(start)
		log.Error("stream establishment failed", "error", err, "duration_ms", elapsed.Milliseconds())
		writeDispatchError(w, r, err, elapsed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var deltas int
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			log.Error("stream failed", "error", chunk.Err, "deltas", deltas)
			if writeSSE(w, flusher, errorFrame{Error: KindStream, Message: chunk.Err.Error()}) == nil {
				writeSentinel(w, flusher)
			}
			return
		case chunk.Done:
			writeSentinel(w, flusher)
			log.Info("stream completed",
				"model", chunk.Model,
				"deltas", deltas,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		default:
			if err := writeSSE(w, flusher, deltaFrame{Content: chunk.Delta}); err != nil {
				log.Warn("client went away", "error", err, "deltas", deltas)
				return
			}
			deltas++
		}
	}
	log.Warn("stream abandoned", "deltas", deltas, "error", r.Context().Err())
}

// writeSSE writes v as a single data frame.
func writeSSE(w io.Writer, flusher http.Flusher, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize frame: %w", err)
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	flusher.Flush()
	return nil
}

func writeSentinel(w io.Writer, flusher http.Flusher) {
	fmt.Fprintf(w, "data: %s\n\n", DoneSentinel)
	flusher.Flush()
}
