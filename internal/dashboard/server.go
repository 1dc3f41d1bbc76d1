// Package dashboard serves the local web dashboard.
//
// The dashboard is a loopback-only HTTP UI over the same session the CLI
// uses: sign in once and both surfaces share it. Remote requests are
// rejected outright; for remote use, tunnel over SSH.
package dashboard

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/config"
	"github.com/masjid-network/masjidctl/internal/guard"
	"github.com/masjid-network/masjidctl/internal/session"
	"github.com/masjid-network/masjidctl/internal/timetable"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Server is the local dashboard HTTP server.
type Server struct {
	addr     string
	sessions *session.Service
	client   *api.Client
	guard    *guard.Guard
	cache    *timetable.Cache
	location string
	rules    []compiledRule
	logger   *slog.Logger
	metrics  *Metrics
	registry *prometheus.Registry
	tmpl     *template.Template

	server *http.Server
}

type compiledRule struct {
	prefix string
	rule   guard.RoleRule
}

// NewServer builds the dashboard server. Role rules from the configuration
// are compiled here so a bad condition fails before the listener opens.
// The registry is shared with the API client so /metrics scrapes both the
// server-side and the request-pipeline series; nil gets a private one.
func NewServer(cfg *config.Config, sessions *session.Service, client *api.Client, cache *timetable.Cache, registry *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard templates: %w", err)
	}

	rules := make([]compiledRule, 0, len(cfg.Dashboard.RoleRules))
	for _, rr := range cfg.Dashboard.RoleRules {
		compiled, err := guard.CompileRule(guard.RoleRule{Roles: rr.Roles, Condition: rr.Condition})
		if err != nil {
			return nil, fmt.Errorf("role rule %s: %w", rr.Prefix, err)
		}
		rules = append(rules, compiledRule{prefix: rr.Prefix, rule: compiled})
	}

	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Server{
		addr:     cfg.Dashboard.Addr,
		sessions: sessions,
		client:   client,
		guard:    guard.New(sessions, logger),
		cache:    cache,
		location: cfg.Timetable.Location,
		rules:    rules,
		logger:   logger,
		metrics:  NewMetrics(registry),
		registry: registry,
		tmpl:     tmpl,
	}, nil
}

// protect wraps a handler with the strictest guard configured for its path:
// a matching role rule wins over plain authentication.
func (s *Server) protect(path string, h http.HandlerFunc) http.Handler {
	for _, cr := range s.rules {
		if strings.HasPrefix(path, cr.prefix) {
			return s.guard.RoleRestricted(cr.rule, h)
		}
	}
	return s.guard.Protected(h)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/login", s.guard.GuestOnly(http.HandlerFunc(s.handleLogin)))
	mux.Handle("/register", s.guard.GuestOnly(http.HandlerFunc(s.handleRegister)))
	mux.Handle("/logout", s.protect("/logout", s.handleLogout))

	mux.Handle("/dashboard", s.protect("/dashboard", s.handleDashboard))
	mux.Handle("/profile", s.protect("/profile", s.handleProfile))
	mux.Handle("/profile/password", s.protect("/profile/password", s.handlePassword))
	mux.Handle("/mosques", s.protect("/mosques", s.handleMosques))
	mux.Handle("/mosques/favorite", s.protect("/mosques/favorite", s.handleFavorite))
	mux.Handle("/timetable", s.protect("/timetable", s.handleTimetable))

	mux.HandleFunc("/unauthorized", s.handleUnauthorized)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})

	var handler http.Handler = mux
	handler = s.metricsMiddleware(handler)
	handler = s.localOnly(handler)
	return handler
}

// localOnly rejects any request that did not arrive over loopback.
func (s *Server) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLocalhost(r) {
			s.logger.Warn("rejected remote dashboard request", "remote", r.RemoteAddr)
			http.Error(w, "dashboard requires localhost access", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLocalhost(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.metrics.RequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
		s.metrics.RequestsTotal.WithLabelValues(r.Method, statusToLabel(wrapped.status)).Inc()
	})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func statusToLabel(code int) string {
	if code >= 200 && code < 400 {
		return "ok"
	}
	return "error"
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down dashboard")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("dashboard shutdown error", "error", err)
		return err
	}
	return nil
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}
