package api

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client. Attach the cookie sink's jar
// here so the backend sees the mirrored token cookies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. Ignored when WithHTTPClient
// supplies a client of its own. Defaults to 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics wires the Prometheus pipeline metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCacheTTL sets the lifetime of cached GET responses.
// Zero disables response caching. Defaults to 30 seconds.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = d
	}
}

// WithTracer sets the OpenTelemetry tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithSessionExpiredHook registers a callback invoked exactly once per
// terminal refresh failure, after tokens are cleared. The CLI prints a
// re-login hint here; the dashboard resets its session state.
func WithSessionExpiredHook(fn func()) Option {
	return func(c *Client) {
		c.onSessionExpired = fn
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}
