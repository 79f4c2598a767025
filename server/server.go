// Package server exposes the invocation engine over HTTP: agent discovery,
// blocking invocation, SSE streaming, thread history, health, and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/agentserve-dev/agentserve/engine"
	"github.com/agentserve-dev/agentserve/pkg/observability"
)

// Options configures the HTTP server.
type Options struct {
	// Addr is the listen address, host:port.
	Addr string
	// AuthSecret, when set, requires a matching bearer token on every
	// API request. Health and metrics stay open.
	AuthSecret string
	// DefaultAgent serves the unprefixed /invoke and /stream routes.
	DefaultAgent string
	// RateLimit is requests per second across all clients; 0 disables.
	RateLimit float64
	RateBurst int
	// Health reports backend health on /health. Optional.
	Health *observability.HealthChecker
}

// Server is the HTTP front end over an Engine.
type Server struct {
	engine  *engine.Engine
	opts    Options
	limiter *rate.Limiter
	http    *http.Server
}

// New creates a server. Call ListenAndServe or mount Handler yourself.
func New(e *engine.Engine, opts Options) *Server {
	if opts.DefaultAgent == "" {
		opts.DefaultAgent = "chatbot"
	}
	s := &Server{engine: e, opts: opts}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst == 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Handler builds the route table with auth, rate limiting, and metrics
// middleware applied to the API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	api := func(h http.HandlerFunc) http.Handler {
		return s.withMetrics(s.withRateLimit(s.withAuth(h)))
	}

	mux.Handle("GET /agents", api(s.handleListAgents))
	mux.Handle("GET /agents/{agent}", api(s.handleDescribeAgent))
	mux.Handle("POST /agents/{agent}/invoke", api(s.handleInvoke))
	mux.Handle("POST /agents/{agent}/stream", api(s.handleStream))
	mux.Handle("POST /invoke", api(s.handleInvoke))
	mux.Handle("POST /stream", api(s.handleStream))
	mux.Handle("GET /threads/{thread}/history", api(s.handleHistory))

	if s.opts.Health != nil {
		mux.HandleFunc("GET /health", s.opts.Health.Handler())
	} else {
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
		})
	}
	mux.Handle("GET /metrics", observability.MetricsHandler())

	return mux
}

// ListenAndServe blocks serving the API until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.http = &http.Server{
		Addr:        s.opts.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Streams can stay open well past a typical request; rely on
		// request contexts instead of a write deadline.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}
