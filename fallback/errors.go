package fallback

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCandidates is returned when Run is called with an empty candidate list.
var ErrNoCandidates = errors.New("no candidate models")

// AttemptError is the failure of a single candidate.
type AttemptError struct {
	Model string
	Err   error
}

// Error returns the candidate and its failure.
func (e *AttemptError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when every candidate of a multi-candidate run
// failed. It unwraps to the last candidate's error.
type ExhaustedError struct {
	Attempts []*AttemptError
}

// Error names the number of candidates tried and the last failure.
func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all candidate models failed"
	}
	return fmt.Sprintf("all %d candidate models failed, last error: %v",
		len(e.Attempts), e.Last().Err)
}

// Unwrap returns the last candidate's error.
func (e *ExhaustedError) Unwrap() error {
	if last := e.Last(); last != nil {
		return last.Err
	}
	return nil
}

// Last returns the final attempt, or nil.
func (e *ExhaustedError) Last() *AttemptError {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1]
}

// Models returns the candidates tried, in order.
func (e *ExhaustedError) Models() string {
	models := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		models[i] = a.Model
	}
	return strings.Join(models, ", ")
}

// IsExhausted reports whether err is an ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
