// Package server provides the HTTP API for Osusume.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/engine"
)

// Server is the HTTP server for the Osusume API.
type Server struct {
	engine *engine.Engine
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(eng *engine.Engine, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		engine: eng,
		config: cfg,
		logger: logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/mode", s.handleMode)
	r.Get("/api/v1/recommendations", s.handleRecommendations)
	r.Post("/api/v1/recommendations/preferences", s.handlePreferenceRecommendations)
	r.Post("/api/v1/recommendations/book", s.handleBookRecommendations)
	r.Get("/api/v1/books/popular", s.handlePopularBooks)
	r.Get("/api/v1/genres", s.handleGenres)
	r.Get("/api/v1/genres/{genre}/recommendations", s.handleGenreRecommendations)
	r.Get("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/books/{title}/features", s.handleBookFeatures)
	r.Post("/api/v1/retrain", s.handleRetrain)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
