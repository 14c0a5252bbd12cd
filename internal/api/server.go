// Package api exposes the letter operations over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/busybox42/lettera/internal/service"
)

// Config represents API server configuration
type Config struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// Server serves the letter API.
type Server struct {
	config     *Config
	svc        *service.Service
	httpServer *http.Server
	listenAddr string
	logger     *slog.Logger
}

// NewServer creates a new API server
func NewServer(config *Config, svc *service.Service, logger *slog.Logger) (*Server, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("API server disabled in configuration")
	}

	listenAddr := config.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8080"
	}

	if logger == nil {
		logger = slog.Default().With("component", "api")
	}

	return &Server{
		config:     config,
		svc:        svc,
		listenAddr: listenAddr,
		logger:     logger,
	}, nil
}

// Router builds the HTTP routing table. Exposed for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(s.logger))

	r.HandleFunc("/letter", s.handleFindLetters).Methods("GET")
	r.HandleFunc("/letter", s.handleCreateLetter).Methods("POST")
	r.HandleFunc("/letter/{id}", s.handleGetLetter).Methods("GET")
	r.HandleFunc("/letter/{id}", s.handleUpdateLetter).Methods("PUT")
	r.HandleFunc("/letter/{id}", s.handleDeleteLetter).Methods("DELETE")
	r.HandleFunc("/letter/{id}/searchparameters", s.handleGetSearchParameters).Methods("GET")
	r.HandleFunc("/sendletter", s.handleSendLetter).Methods("POST")

	r.HandleFunc("/api/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

// Start starts the API server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "addr", s.listenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("API server failed", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
