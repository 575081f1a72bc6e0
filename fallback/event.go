package fallback

import "time"

// EventType identifies the kind of event occurring during a candidate run.
type EventType string

const (
	// EventAttemptStart fires before each candidate is tried.
	EventAttemptStart EventType = "attempt_start"

	// EventAttemptFailed fires after a candidate fails.
	EventAttemptFailed EventType = "attempt_failed"

	// EventAdvancing fires before moving on to the next candidate.
	EventAdvancing EventType = "advancing"

	// EventSuccess fires when a candidate succeeds.
	EventSuccess EventType = "success"

	// EventExhausted fires when every candidate has failed.
	EventExhausted EventType = "exhausted"
)

// Event represents an observable occurrence during a candidate run.
type Event struct {
	// Type identifies the kind of event.
	Type EventType

	// Attempt is the current attempt number (1-indexed).
	Attempt int

	// Candidates is the total number of candidates.
	Candidates int

	// Model is the candidate being tried.
	Model string

	// Error contains the error from a failed attempt.
	Error error

	// RateLimited indicates the failure was a 429 from the gateway.
	RateLimited bool

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
