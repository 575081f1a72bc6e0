// Package dispatch executes model requests against the gateway through an
// ordered chain of transports.
//
// Each [Stage] of the chain pairs a [Transport] with a candidate policy. A
// stage without model fallback only tries the tier's model; a stage with
// fallback walks the tier's full candidate list. The first stage to produce
// a result ends the chain.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/fallback"
	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

// ErrNoTransports is returned when a dispatcher has an empty chain.
var ErrNoTransports = errors.New("dispatch: no transports configured")

// Transport performs gateway calls for a single model.
type Transport interface {
	// Name identifies the transport in logs.
	Name() string
	// Complete sends the request to model and returns a normalized result.
	Complete(ctx context.Context, model string, req ai.Request) (*ai.Result, error)
	// Stream opens a streamed completion. An error means the stream could
	// not be established and nothing was delivered.
	Stream(ctx context.Context, model string, req ai.Request) (<-chan ai.StreamChunk, error)
}

// Stage is one link of the transport chain.
type Stage struct {
	Transport Transport
	// Fallback makes the stage walk the tier's full candidate list instead
	// of only the tier's model.
	Fallback bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithEvents sets a channel receiving candidate loop events.
// Events are sent non-blocking; if the channel is full, events are dropped.
func WithEvents(ch chan<- fallback.Event) Option {
	return func(d *Dispatcher) {
		d.events = ch
	}
}

// Dispatcher routes requests to models by tier. It holds no per-request
// state and is safe for concurrent use.
type Dispatcher struct {
	policy *tier.Policy
	stages []Stage
	logger *slog.Logger
	events chan<- fallback.Event
}

// New creates a dispatcher over the given chain. A nil policy uses
// [tier.DefaultPolicy].
func New(policy *tier.Policy, stages []Stage, opts ...Option) *Dispatcher {
	if policy == nil {
		policy = tier.DefaultPolicy()
	}
	d := &Dispatcher{
		policy: policy,
		stages: append([]Stage(nil), stages...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the tier policy used for model selection.
func (d *Dispatcher) Policy() *tier.Policy {
	return d.policy
}

func (d *Dispatcher) candidates(st Stage, raw string) []string {
	if st.Fallback {
		return d.policy.Candidates(raw)
	}
	return []string{d.policy.ModelFor(raw)}
}

// Execute runs req through the transport chain and returns the first
// successful result.
//
// When every stage fails, the error of the last stage is returned. For a
// multi-candidate stage that is a [*fallback.ExhaustedError].
func (d *Dispatcher) Execute(ctx context.Context, req ai.Request) (*ai.Result, error) {
	if len(req.Messages) == 0 {
		return nil, ai.ErrEmptyInput
	}
	if len(d.stages) == 0 {
		return nil, ErrNoTransports
	}

	resolved := d.policy.Resolve(req.Tier)
	var lastErr error
	for i, st := range d.stages {
		log := d.logger.With("transport", st.Transport.Name(), "tier", resolved)

		res, err := fallback.Run(ctx, fallback.Config{Events: d.events, Logger: log},
			d.candidates(st, req.Tier),
			func(ctx context.Context, model string) (*ai.Result, error) {
				return complete(ctx, st.Transport, model, req)
			})
		if err == nil {
			log.Debug("dispatch completed", "model", res.Model, "tokens", res.Usage.TotalTokens)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		if i < len(d.stages)-1 {
			log.Warn("transport failed, trying next transport",
				"next", d.stages[i+1].Transport.Name(),
				"error", err,
			)
		}
	}
	return nil, lastErr
}

// complete calls t and fills in result fields a transport left empty.
func complete(ctx context.Context, t Transport, model string, req ai.Request) (*ai.Result, error) {
	res, err := t.Complete(ctx, model, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ai.ErrMalformedResponse
	}
	if res.Model == "" {
		res.Model = model
	}
	res.Usage = ai.NewUsage(res.Usage.TotalTokens, res.Usage.PromptTokens, res.Usage.CompletionTokens)
	return res, nil
}
