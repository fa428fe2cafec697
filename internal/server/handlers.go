package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"clickrace/internal/apperr"
	"clickrace/internal/leaderboard"
	"clickrace/internal/rooms"
)

const qrSize = 320

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	code, err := rooms.FreeCode(r.Context(), s.Rooms)
	if err != nil {
		s.Log.Error("create room code", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		RoomID string `json:"roomId"`
	}{RoomID: code})
}

func (s *Server) handleRoomState(w http.ResponseWriter, r *http.Request) {
	state, err := s.Engine.RoomState(r.Context(), roomID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	entries, err := s.Engine.Leaderboard(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		RoomID      string              `json:"roomId"`
		Leaderboard []leaderboard.Entry `json:"leaderboard"`
	}{RoomID: id, Leaderboard: entries})
}

// handleRoomQR renders a QR code of the room's join link.
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	id := roomID(r)
	link := s.Config.PublicURL + "/?room=" + url.QueryEscape(id)

	png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
	if err != nil {
		s.Log.Error("qr generation", zap.String("room", id), zap.Error(err))
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInactiveGame:
		status = http.StatusConflict
	default:
		s.Log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorBody(apperr.PublicMessage(err)))
}

func roomID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "roomID"))
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error":"encoding response"}`)
	}
}
