package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scout/internal/brand"
	"scout/internal/config"
	"scout/internal/dictionary"
	"scout/internal/store"
)

// Server exposes the online prediction API. The matcher is loaded once and
// swapped atomically on dictionary updates, so concurrent predictions always
// observe a complete dictionary snapshot.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	metrics *serverMetrics
	matcher atomic.Pointer[brand.Matcher]

	listener net.Listener
	server   *http.Server
}

// New constructs the prediction server, loading the dictionary from the
// configured path (falling back to the built-in dictionary as the batch path
// does).
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Server, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("server requires config and store")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dict, err := dictionary.Load(cfg.Paths.DictionaryPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: newServerMetrics(),
	}
	s.matcher.Store(brand.NewMatcher(dict))

	requestTimeout := time.Duration(cfg.Server.RequestTimeout) * time.Second
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Router builds the chi handler tree. Exposed for httptest-based tests.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	r.Use(s.metrics.requestMetrics)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	r.Post("/predict", s.handlePredict)
	r.Post("/dictionary/upsert", s.handleDictionaryUpsert)
	return r
}

// Start begins serving on the configured bind address and shuts down when the
// context is canceled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Server.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("prediction api listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down outside of context cancellation.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// currentMatcher returns the live matcher snapshot.
func (s *Server) currentMatcher() *brand.Matcher {
	return s.matcher.Load()
}

// swapMatcher atomically replaces the live matcher.
func (s *Server) swapMatcher(m *brand.Matcher) {
	s.matcher.Store(m)
}
