// Package api provides HTTP handlers and the main API server logic for
// TriagePipe.
//
// It exposes RESTful endpoints for symptom analysis, emergency checks, and
// operational introspection. The API wires together the analysis, store, and
// genai modules.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BTreeMap/TriagePipe/internal/analysis"
	"github.com/BTreeMap/TriagePipe/internal/cache"
	"github.com/BTreeMap/TriagePipe/internal/genai"
	"github.com/BTreeMap/TriagePipe/internal/store"
)

// Default server configuration.
const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown after a signal.
	DefaultShutdownTimeout = 10 * time.Second
)

// Server handles HTTP requests for symptom analysis and introspection.
type Server struct {
	addr     string
	analyzer *analysis.Analyzer
	journal  store.Journal
}

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// CacheSize caps the analysis result cache. Zero keeps the cache default.
	CacheSize int
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithCacheSize sets the capacity of the analysis result cache.
func WithCacheSize(n int) Option {
	return func(o *Opts) {
		o.CacheSize = n
	}
}

// NewServer creates a Server around the given analyzer and journal.
func NewServer(addr string, analyzer *analysis.Analyzer, journal store.Journal) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{addr: addr, analyzer: analyzer, journal: journal}
}

// Handler builds the route table. It is split from Start so tests can drive
// the mux without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/analyze", s.analyzeHandler)
	mux.HandleFunc("/quick-check", s.quickCheckHandler)
	mux.HandleFunc("/emergency-check", s.emergencyCheckHandler)
	mux.HandleFunc("/metrics", s.metricsHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/journal", s.journalHandler)
	mux.HandleFunc("/journal/emergencies", s.journalEmergenciesHandler)
	mux.HandleFunc("/emergency-guide", s.emergencyGuideHandler)
	return mux
}

// Start runs the HTTP server until an interrupt or terminate signal arrives,
// then shuts down gracefully.
func (s *Server) Start() error {
	httpServer := &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	slog.Info("Server.Start: API server listening", "addr", s.addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server.Start: server failed", "error", err)
			return err
		}
		return nil
	case sig := <-sigCh:
		slog.Info("Server.Start: shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("Server.Start: graceful shutdown failed", "error", err)
		return err
	}
	slog.Info("Server.Start: server stopped")
	return nil
}

// Run wires the journal, provider, and analyzer modules and serves the API.
// A missing provider credential is not fatal; the service starts in demo mode.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var storeCfg store.Opts
	for _, opt := range storeOpts {
		opt(&storeCfg)
	}
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	journal, err := openJournal(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Run: failed to close journal", "error", closeErr)
		}
	}()

	analyzerOpts := []analysis.Option{analysis.WithJournal(journal)}
	if cfg.CacheSize > 0 {
		analyzerOpts = append(analyzerOpts, analysis.WithCache(cache.NewWithConfig(cache.DefaultTTL, cfg.CacheSize)))
	}
	provider, err := genai.NewClient(genaiOpts...)
	switch {
	case err == nil:
		slog.Info("Run: AI provider configured", "provider", provider.Provider())
		analyzerOpts = append(analyzerOpts, analysis.WithProvider(provider))
	case errors.Is(err, genai.ErrNoAPIKey):
		slog.Warn("Run: no provider credential configured, starting in demo mode")
	default:
		return fmt.Errorf("failed to create AI provider: %w", err)
	}
	analyzer := analysis.NewAnalyzer(analyzerOpts...)

	server := NewServer(cfg.Addr, analyzer, journal)
	return server.Start()
}

// openJournal selects the journal backend from the resolved store options.
// No DSN means the in-memory journal.
func openJournal(cfg store.Opts) (store.Journal, error) {
	if cfg.DSN == "" {
		slog.Info("Run: no database DSN configured, using in-memory journal")
		return store.NewInMemoryJournal(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Run: opening Postgres journal", "dsn_set", true)
		return store.NewPostgresJournal(store.WithDSN(cfg.DSN))
	}
	slog.Debug("Run: opening SQLite journal", "path", cfg.DSN)
	return store.NewSQLiteJournal(store.WithDSN(cfg.DSN))
}
