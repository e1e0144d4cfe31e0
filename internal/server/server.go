// Package server exposes inspect and split over HTTP for browser and
// script uploads.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/klytics/drsplit/internal/audit"
	"github.com/klytics/drsplit/internal/logger"
	"github.com/klytics/drsplit/internal/naming"
)

// DefaultMaxUploadMB bounds request bodies when Config.MaxUploadMB is unset.
const DefaultMaxUploadMB = 50

// Config holds what the handlers need from the application config.
type Config struct {
	Addr        string
	MaxUploadMB int
	// Prefix is prepended to suggested artifact names.
	Prefix    string
	Normalize bool
	// FoldAccents applies to normalized splits.
	FoldAccents bool
	Fallbacks   naming.Fallbacks
	Log         *logger.Logger
	Audit       *audit.Logger
	// Version is reported by /healthz.
	Version string
}

func (c Config) maxUpload() int64 {
	mb := c.MaxUploadMB
	if mb <= 0 {
		mb = DefaultMaxUploadMB
	}
	return int64(mb) << 20
}

// Server is a chi router plus the http.Server that runs it.
type Server struct {
	cfg    Config
	log    *logger.Logger
	router *chi.Mux
	srv    *http.Server
}

// New builds a Server with its middleware and routes mounted.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		log:    logger.OrNop(cfg.Log),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(2 * time.Minute))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/inspect", s.handleInspect)
		r.Post("/split", s.handleSplit)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the listening address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("http listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info().Msg("http shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs one line per request through zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
