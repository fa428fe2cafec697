package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{}))

	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", s.handleCreateRoom)
		r.Get("/{roomID}", s.handleRoomState)
		r.Get("/{roomID}/leaderboard", s.handleLeaderboard)
		r.Get("/{roomID}/qr.png", s.handleRoomQR)
		r.Get("/{roomID}/games", s.handleRoomGames)
	})

	r.Get("/players/{name}/stats", s.handlePlayerStats)
	r.Get("/stats/leaderboard", s.handleStatsLeaderboard)
	return r
}
