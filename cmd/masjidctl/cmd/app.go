package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/config"
	"github.com/masjid-network/masjidctl/internal/session"
	"github.com/masjid-network/masjidctl/internal/token"
)

// tokenPassphraseEnv unlocks a passphrase-protected token file without a
// prompt, for scripts and cron.
const tokenPassphraseEnv = "MASJIDCTL_TOKEN_PASSPHRASE"

// app bundles the wired components every command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	fileSink *token.FileSink
	store    *token.Store
	client   *api.Client
	sessions *session.Service
	registry *prometheus.Registry
}

// buildApp loads configuration and wires tokens, API client and session.
// When hydrate is true the session is initialized from stored tokens, which
// may hit the network once.
func buildApp(ctx context.Context, hydrate bool, extra ...api.Option) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Logger goes to stderr so command output on stdout stays scriptable.
	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	if file := config.ConfigFileUsed(); file != "" {
		logger.Debug("loaded config", "file", file)
	}

	fileSink := token.NewFileSink(filepath.Join(cfg.Tokens.Dir, "tokens.json"), logger)
	if fileSink.Locked() {
		pass := os.Getenv(tokenPassphraseEnv)
		if pass == "" {
			pass, err = promptSecret("Token passphrase: ")
			if err != nil {
				return nil, err
			}
		}
		if err := fileSink.Unlock(pass); err != nil {
			return nil, fmt.Errorf("unlock token file: %w", err)
		}
	}

	var mirrors []token.Sink
	if cfg.Tokens.CookieMirror {
		cookies, err := token.NewCookieSink(cfg.API.BaseURL)
		if err != nil {
			logger.Warn("cookie mirror disabled", "error", err)
		} else {
			mirrors = append(mirrors, cookies)
		}
	}
	store := token.NewStore(fileSink, logger, mirrors...)

	timeout, cacheTTL, _, err := cfg.Durations()
	if err != nil {
		return nil, err
	}

	// One registry for the process: the client's request-pipeline series
	// land next to the dashboard's server series on /metrics.
	registry := prometheus.NewRegistry()

	// The session service is built after the client but the expiry hook
	// must reach it; the indirection closes that loop.
	var sessions *session.Service
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithTimeout(timeout),
		api.WithCacheTTL(cacheTTL),
		api.WithMetrics(api.NewMetrics(registry)),
		api.WithSessionExpiredHook(func() {
			if sessions != nil {
				sessions.HandleExpiry()
			}
		}),
	}
	opts = append(opts, extra...)
	client := api.New(cfg.API.BaseURL, store, opts...)

	sessions = session.New(client, store, logger)
	if hydrate {
		sessions.Init(ctx)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		fileSink: fileSink,
		store:    store,
		client:   client,
		sessions: sessions,
		registry: registry,
	}, nil
}

func (a *app) close() {
	a.sessions.Close()
}

// requireUser fails the command unless someone is signed in.
func (a *app) requireUser() error {
	if !a.sessions.Snapshot().Authenticated {
		return fmt.Errorf("not signed in; run `masjidctl login` first")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// promptSecret reads a line from stdin without echo suppression. The
// dashboard and CI paths use the environment variable instead; this prompt
// is the interactive fallback.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return line, nil
}
