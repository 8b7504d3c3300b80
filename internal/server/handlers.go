package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/engine"
	"github.com/hyperjump/osusume/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"mode":  s.engine.Mode(),
		"books": s.engine.Size(),
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	k := intParam(r, "k", 0)
	includeSelf := boolParam(r, "include_self")

	s.logger.Debug("recommendation request",
		zap.String("title", title), zap.Int("k", k), zap.Bool("include_self", includeSelf))
	resp, err := s.engine.RecommendSimilar(r.Context(), title, k, includeSelf)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreferenceRecommendations(w http.ResponseWriter, r *http.Request) {
	var prefs models.PreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	k := intParam(r, "k", 0)

	s.logger.Debug("preference recommendation request",
		zap.Bool("high_rating", prefs.HighRating), zap.Bool("popular", prefs.Popular),
		zap.String("language", prefs.Language), zap.Strings("genres", prefs.Genres))
	resp, err := s.engine.RecommendForPreferences(r.Context(), &prefs, k)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBookRecommendations(w http.ResponseWriter, r *http.Request) {
	var book models.Book
	if err := json.NewDecoder(r.Body).Decode(&book); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if book.Title == "" {
		s.respondError(w, http.StatusBadRequest, "title is required")
		return
	}
	k := intParam(r, "k", 0)

	resp, err := s.engine.RecommendForBook(r.Context(), &book, k)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePopularBooks(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.PopularBooks(
		r.URL.Query().Get("rating_category"),
		r.URL.Query().Get("language"),
		int64(intParam(r, "min_ratings", -1)),
		intParam(r, "limit", 0),
	)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string][]string{"genres": s.engine.Genres()})
}

func (s *Server) handleGenreRecommendations(w http.ResponseWriter, r *http.Request) {
	genre := chi.URLParam(r, "genre")
	k := intParam(r, "k", 0)

	s.logger.Debug("genre recommendation request", zap.String("genre", genre), zap.Int("k", k))
	resp, err := s.engine.RecommendForGenre(r.Context(), genre, k)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := intParam(r, "limit", 0)

	resp, err := s.engine.Search(r.Context(), query, limit)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBookFeatures(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")
	resp, err := s.engine.BookVector(title)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("retrain requested")
	if err := s.engine.Invalidate(r.Context()); err != nil {
		s.logger.Error("retrain failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "retrained",
		"mode":   s.engine.Mode(),
	})
}

// respondEngineError maps engine errors to HTTP statuses.
func (s *Server) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrNotReady):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func boolParam(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
