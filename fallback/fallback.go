// Package fallback runs an operation against an ordered list of candidate
// models until one succeeds.
//
// Candidates are tried strictly in order, one at a time. A candidate is never
// retried: a rate limited or failed candidate advances the loop to the next
// one, and the first success ends it.
package fallback

import (
	"context"
	"log/slog"

	ai "github.com/astrohackerx/spl402-OpenRouter"
)

// Config configures a candidate run.
type Config struct {
	// Events receives observability events. Sends never block.
	Events chan<- Event
	// Logger is used for per-candidate failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Run calls fn for each candidate in order and returns the first success.
//
// When every candidate fails, a single-candidate run returns an
// [*AttemptError] and a multi-candidate run returns an [*ExhaustedError].
// If ctx is done, Run stops without trying further candidates and returns
// the context error.
func Run[T any](ctx context.Context, cfg Config, candidates []string, fn func(ctx context.Context, model string) (T, error)) (T, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, ErrNoCandidates
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	attempts := make([]*AttemptError, 0, len(candidates))
	for i, model := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		emit(cfg.Events, Event{
			Type:       EventAttemptStart,
			Attempt:    i + 1,
			Candidates: len(candidates),
			Model:      model,
		})

		result, err := fn(ctx, model)
		if err == nil {
			emit(cfg.Events, Event{
				Type:       EventSuccess,
				Attempt:    i + 1,
				Candidates: len(candidates),
				Model:      model,
			})
			return result, nil
		}

		rateLimited := ai.IsRateLimited(err)
		attempts = append(attempts, &AttemptError{Model: model, Err: err})

		emit(cfg.Events, Event{
			Type:        EventAttemptFailed,
			Attempt:     i + 1,
			Candidates:  len(candidates),
			Model:       model,
			Error:       err,
			RateLimited: rateLimited,
		})

		// Caller went away; the remaining candidates would be wasted.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		if i == len(candidates)-1 {
			break
		}

		if rateLimited {
			log.Warn("model rate limited, trying next candidate",
				"model", model,
				"next", candidates[i+1],
				"attempt", i+1,
				"candidates", len(candidates),
				"retry_after", ai.RetryAfterOf(err),
			)
		} else {
			log.Warn("model failed, trying next candidate",
				"model", model,
				"next", candidates[i+1],
				"attempt", i+1,
				"candidates", len(candidates),
				"transient", ai.IsTransient(err),
				"error", err,
			)
		}
		emit(cfg.Events, Event{
			Type:       EventAdvancing,
			Attempt:    i + 1,
			Candidates: len(candidates),
			Model:      candidates[i+1],
		})
	}

	if len(attempts) == 1 {
		return zero, attempts[0]
	}

	exhausted := &ExhaustedError{Attempts: attempts}
	emit(cfg.Events, Event{
		Type:       EventExhausted,
		Attempt:    len(candidates),
		Candidates: len(candidates),
		Error:      exhausted,
	})
	log.Error("all candidate models failed",
		"models", exhausted.Models(),
		"error", exhausted.Last().Err,
	)
	return zero, exhausted
}
