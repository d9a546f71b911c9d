package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/srcmax-studio/war-drafting-simulator-server/internal/server"
	"github.com/srcmax-studio/war-drafting-simulator-server/internal/ws"
)

// SetupRoutes builds the router with the orchestrator injected.
func SetupRoutes(s *server.Server, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", ws.Handler(s, log))
	r.Get("/status", Status(s))
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}
