package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/server"
)

// Status mirrors the status event over plain HTTP so clients can probe a
// server before opening a websocket.
func Status(s *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view := s.View()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(view.Status)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
