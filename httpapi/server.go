// Package httpapi exposes the capability endpoints over HTTP.
//
// Every capability route validates its input, assembles a prompt, hands
// the request to a [Service] and shapes the reply. Access control lives
// outside this package: callers attach it with [WithGate], using [Routes]
// to look up per-route metadata.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	ai "github.com/astrohackerx/spl402-OpenRouter"
	"github.com/astrohackerx/spl402-OpenRouter/tier"
)

// Service dispatches model requests. *client.Client implements it.
type Service interface {
	Complete(ctx context.Context, req ai.Request) (*ai.Result, error)
	Stream(ctx context.Context, req ai.Request) (<-chan ai.StreamChunk, error)
	Configured() bool
	Policy() *tier.Policy
}

// Capability names.
const (
	CapabilityChat     = "chat"
	CapabilityCode     = "code"
	CapabilityAnalyze  = "analyze"
	CapabilityGenerate = "generate"
	CapabilityVision   = "vision"
)

// Route describes a capability endpoint for an external gate.
type Route struct {
	Capability string `json:"capability"`
	Method     string `json:"method"`
	Path       string `json:"path"`
}

// Routes lists the capability endpoints in registration order.
var Routes = []Route{
	{Capability: CapabilityChat, Method: http.MethodPost, Path: "/api/chat"},
	{Capability: CapabilityCode, Method: http.MethodPost, Path: "/api/code"},
	{Capability: CapabilityAnalyze, Method: http.MethodPost, Path: "/api/analyze"},
	{Capability: CapabilityGenerate, Method: http.MethodPost, Path: "/api/generate"},
	{Capability: CapabilityVision, Method: http.MethodPost, Path: "/api/vision"},
}

// RouteFor returns the route registered for path.
func RouteFor(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}

// Option configures the router.
type Option func(*handler)

// WithGate wraps every capability route with the given middlewares.
// Health and tier metadata stay ungated.
func WithGate(mw ...func(http.Handler) http.Handler) Option {
	return func(h *handler) {
		h.gate = append(h.gate, mw...)
	}
}

// WithCORSOrigin sets the allowed CORS origin. Empty disables CORS headers.
func WithCORSOrigin(origin string) Option {
	return func(h *handler) {
		h.corsOrigin = origin
	}
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMaxBodyBytes caps request bodies. Defaults to DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// DefaultMaxBodyBytes leaves room for inline base64 images.
const DefaultMaxBodyBytes = 20 << 20

type handler struct {
	svc        Service
	gate       []func(http.Handler) http.Handler
	corsOrigin string
	logger     *slog.Logger
	maxBody    int64
}

// NewRouter builds the HTTP handler for svc.
func NewRouter(svc Service, opts ...Option) http.Handler {
	h := &handler{
		svc:     svc,
		logger:  slog.Default(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(h.requestID)
	r.Use(h.requestLogger)
	if h.corsOrigin != "" {
		r.Use(h.cors)
	}

	r.Get("/health", h.handleHealth)
	r.Get("/api/tiers", h.handleTiers)

	capabilities := map[string]http.HandlerFunc{
		CapabilityChat:     h.handleChat,
		CapabilityCode:     h.handleCode,
		CapabilityAnalyze:  h.handleAnalyze,
		CapabilityGenerate: h.handleGenerate,
		CapabilityVision:   h.handleVision,
	}
	r.Group(func(r chi.Router) {
		r.Use(h.gate...)
		for _, route := range Routes {
			r.Method(route.Method, route.Path, capabilities[route.Capability])
		}
	})

	return r
}

// Server is the HTTP server for the capability endpoints.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server listening on addr.
// There is no write timeout so long streams are not cut off.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("spl402 listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
