// Package http exposes the query, ingestion and management boundaries as
// a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driving"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/logger"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 15 * time.Second

// Config holds server configuration.
type Config struct {
	Addr    string
	Version string

	// UploadDir receives multipart uploads before they are ingested.
	// Empty disables uploads; JSON path ingestion still works.
	UploadDir string

	// MaxUploadBytes caps multipart uploads.
	MaxUploadBytes int64

	// AllowedOrigins enables CORS for the listed origins ("*" for any).
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:8080",
		Version:        "dev",
		MaxUploadBytes: 32 << 20,
	}
}

// Services are the driving ports the API serves.
type Services struct {
	Ask        driving.AskService
	Ingestion  driving.IngestionService
	Management driving.ManagementService
}

// Server is the HTTP API.
type Server struct {
	cfg      Config
	services Services
	router   *mux.Router
}

// NewServer creates a server and registers its routes.
func NewServer(cfg Config, services Services) (*Server, error) {
	if services.Ask == nil || services.Ingestion == nil || services.Management == nil {
		return nil, errors.New("http: ask, ingestion and management services are required")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	s := &Server{cfg: cfg, services: services, router: mux.NewRouter()}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(requestIDMiddleware, loggingMiddleware, recoveryMiddleware)
	cors := len(s.cfg.AllowedOrigins) > 0
	if cors {
		s.router.Use(corsMiddleware(s.cfg.AllowedOrigins))
	}
	// Preflight requests only route when CORS is enabled.
	methods := func(m string) []string {
		if cors {
			return []string{m, http.MethodOptions}
		}
		return []string{m}
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ask", s.handleAsk).Methods(methods(http.MethodPost)...)
	api.HandleFunc("/ingest", s.handleIngest).Methods(methods(http.MethodPost)...)
	api.HandleFunc("/files", s.handleListFiles).Methods(methods(http.MethodGet)...)
	api.HandleFunc("/files/{filename}", s.handleDeleteFile).Methods(methods(http.MethodDelete)...)
	api.HandleFunc("/stats", s.handleStats).Methods(methods(http.MethodGet)...)
	api.HandleFunc("/quality", s.handleQuality).Methods(methods(http.MethodGet)...)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("HTTP API stopped")
	return nil
}
