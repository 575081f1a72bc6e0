package client

import (
	"time"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// EventType identifies the kind of event occurring during client operations.
type EventType string

const (
	// EventRequestStart fires before a dispatch begins.
	EventRequestStart EventType = "request_start"

	// EventRequestComplete fires after a dispatch succeeds. For streams it
	// fires once the stream is established.
	EventRequestComplete EventType = "request_complete"

	// EventRequestError fires when a dispatch fails.
	EventRequestError EventType = "request_error"
)

// Operation names carried by events.
const (
	OperationComplete = "complete"
	OperationStream   = "stream"
)

// Event represents an observable occurrence during client operations.
type Event struct {
	// Type identifies the kind of event.
	Type EventType

	// Operation is OperationComplete or OperationStream.
	Operation string

	// Tier is the resolved tier of the request.
	Tier string

	// Model is the model that served the request (if known).
	Model string

	// Duration is the elapsed time for finished requests.
	Duration time.Duration

	// Usage contains token usage for completed non-streamed requests.
	Usage *ai.Usage

	// Error contains the error for EventRequestError.
	Error error

	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// emit sends an event with timestamp to the channel without blocking.
func emit(ch chan<- Event, event Event) {
	if ch == nil {
		return
	}
	event.Timestamp = time.Now()
	select {
	case ch <- event:
	default:
		// Channel full - don't block
	}
}
