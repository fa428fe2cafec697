package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"clickrace/internal/analytics"
)

const defaultStatsLimit = 10

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	if s.Analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("Analytics requires a database connection"))
		return
	}

	stats, err := s.Analytics.GetPlayerLifetimeStats(r.Context(), chi.URLParam(r, "name"))
	if errors.Is(err, analytics.ErrNoGames) {
		writeJSON(w, http.StatusNotFound, errorBody("Player has no recorded games"))
		return
	}
	if err != nil {
		s.Log.Error("player stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Internal error"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatsLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.Analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("Analytics requires a database connection"))
		return
	}

	category := r.URL.Query().Get("cat")
	if category == "" {
		category = "clicks"
	}

	entries, err := s.Analytics.GetLeaderboard(r.Context(), category, limitParam(r))
	if errors.Is(err, analytics.ErrUnknownCategory) {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err != nil {
		s.Log.Error("stats leaderboard", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Internal error"))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRoomGames(w http.ResponseWriter, r *http.Request) {
	if s.Analytics == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("Analytics requires a database connection"))
		return
	}

	recaps, err := s.Analytics.GetRoomGames(r.Context(), roomID(r), limitParam(r))
	if err != nil {
		s.Log.Error("room games", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Internal error"))
		return
	}
	writeJSON(w, http.StatusOK, recaps)
}

func limitParam(r *http.Request) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 100 {
		return n
	}
	return defaultStatsLimit
}
