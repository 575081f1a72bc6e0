package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/dispatch"
	"github.com/astrohackerx/spl402-OpenRouter/fallback"
	"github.com/astrohackerx/spl402-OpenRouter/internal/provider/direct"
	"github.com/astrohackerx/spl402-OpenRouter/internal/provider/openai"
	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

// DefaultTimeout bounds each individual gateway call attempt.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the shared gateway client.
type Config struct {
	// APIKey authenticates against the gateway. It is only checked on
	// first use, so a process without one can still start and report
	// itself unconfigured.
	APIKey string

	// BaseURL overrides the gateway API root.
	BaseURL string

	// Timeout bounds each call attempt. Defaults to DefaultTimeout.
	Timeout time.Duration

	// SiteURL and SiteName are sent as gateway attribution headers.
	SiteURL  string
	SiteName string

	// RequestsPerSecond throttles the direct transport. Zero disables it.
	RequestsPerSecond float64

	// Policy maps tiers to models. Defaults to tier.DefaultPolicy().
	Policy *tier.Policy

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Events is an optional channel for receiving client operation events.
	// Events are sent non-blocking; if the channel is full, events are dropped.
	Events chan<- Event

	// FallbackEvents receives candidate loop events from the dispatcher.
	FallbackEvents chan<- fallback.Event
}

// ErrMissingAPIKey is returned when the gateway is used but no API key
// is configured.
type ErrMissingAPIKey struct{}

func (e *ErrMissingAPIKey) Error() string {
	return "no API key configured for the model gateway (set OPENROUTER_API_KEY)"
}

// Category reports the error as a configuration problem.
func (e *ErrMissingAPIKey) Category() ai.ErrorCategory { return ai.ErrorConfiguration }

// StatusCode returns 0; no gateway call was made.
func (e *ErrMissingAPIKey) StatusCode() int { return 0 }

// RetryAfter returns 0.
func (e *ErrMissingAPIKey) RetryAfter() time.Duration { return 0 }

// Client is the process-wide entry point to the gateway.
// The transport chain is lazily initialized when first needed and never
// changes afterwards.
type Client struct {
	cfg    Config
	policy *tier.Policy
	logger *slog.Logger
	events chan<- Event

	// Lazy-initialized dispatcher (protected by mutex)
	mu         sync.RWMutex
	dispatcher *dispatch.Dispatcher
}

// New creates a client. No transport is constructed until the first call.
func New(cfg Config) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = direct.DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	policy := cfg.Policy
	if policy == nil {
		policy = tier.DefaultPolicy()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		policy: policy,
		logger: logger,
		events: cfg.Events,
	}
}

// Configured reports whether a gateway credential is present.
// It never contacts the gateway.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Policy returns the tier policy.
func (c *Client) Policy() *tier.Policy {
	return c.policy
}

// Dispatcher returns the dispatcher, initializing it if needed.
func (c *Client) Dispatcher() (*dispatch.Dispatcher, error) {
	c.mu.RLock()
	if c.dispatcher != nil {
		defer c.mu.RUnlock()
		return c.dispatcher, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.dispatcher != nil {
		return c.dispatcher, nil
	}

	if !c.Configured() {
		return nil, &ErrMissingAPIKey{}
	}

	c.dispatcher = dispatch.New(c.policy, c.stages(),
		dispatch.WithLogger(c.logger),
		dispatch.WithEvents(c.cfg.FallbackEvents),
	)
	c.logger.Debug("gateway client initialized", "base_url", c.cfg.BaseURL, "timeout", c.cfg.Timeout)
	return c.dispatcher, nil
}

// stages builds the default transport chain: the SDK transport for the
// tier's model, then the direct transport across the full candidate list.
func (c *Client) stages() []dispatch.Stage {
	primary := openai.New(openai.Config{
		APIKey:   c.cfg.APIKey,
		BaseURL:  c.cfg.BaseURL,
		Timeout:  c.cfg.Timeout,
		SiteURL:  c.cfg.SiteURL,
		SiteName: c.cfg.SiteName,
	})
	secondary := direct.New(direct.Config{
		APIKey:            c.cfg.APIKey,
		BaseURL:           c.cfg.BaseURL,
		Timeout:           c.cfg.Timeout,
		SiteURL:           c.cfg.SiteURL,
		SiteName:          c.cfg.SiteName,
		RequestsPerSecond: c.cfg.RequestsPerSecond,
	})
	return []dispatch.Stage{
		{Transport: primary},
		{Transport: secondary, Fallback: true},
	}
}

// Complete dispatches a request and returns the normalized result.
func (c *Client) Complete(ctx context.Context, req ai.Request) (*ai.Result, error) {
	tierName := string(c.policy.Resolve(req.Tier))

	d, err := c.Dispatcher()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	emit(c.events, Event{
		Type:      EventRequestStart,
		Operation: OperationComplete,
		Tier:      tierName,
	})

	res, err := d.Execute(ctx, req)
	if err != nil {
		emit(c.events, Event{
			Type:      EventRequestError,
			Operation: OperationComplete,
			Tier:      tierName,
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, err
	}

	emit(c.events, Event{
		Type:      EventRequestComplete,
		Operation: OperationComplete,
		Tier:      tierName,
		Model:     res.Model,
		Duration:  time.Since(start),
		Usage:     &res.Usage,
	})
	return res, nil
}

// Stream opens a streamed completion for the tier's model.
func (c *Client) Stream(ctx context.Context, req ai.Request) (<-chan ai.StreamChunk, error) {
	tierName := string(c.policy.Resolve(req.Tier))

	d, err := c.Dispatcher()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	emit(c.events, Event{
		Type:      EventRequestStart,
		Operation: OperationStream,
		Tier:      tierName,
		Model:     c.policy.ModelFor(req.Tier),
	})

	ch, err := d.ExecuteStream(ctx, req)
	if err != nil {
		emit(c.events, Event{
			Type:      EventRequestError,
			Operation: OperationStream,
			Tier:      tierName,
			Duration:  time.Since(start),
			Error:     err,
		})
		return nil, err
	}

	emit(c.events, Event{
		Type:      EventRequestComplete,
		Operation: OperationStream,
		Tier:      tierName,
		Model:     c.policy.ModelFor(req.Tier),
		Duration:  time.Since(start),
	})
	return ch, nil
}
