// Package server exposes the operational HTTP endpoints: probes and metrics.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/tiergate-bot/internal/middleware"
	"github.com/Proton-105/tiergate-bot/pkg/logger"
)

// Probes answers the liveness and readiness endpoints.
type Probes interface {
	Liveness(ctx context.Context) error
	Report(ctx context.Context) (map[string]string, error)
}

// NewRouter builds the ops router.
func NewRouter(probes Probes, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logger.Middleware)
	r.Use(middleware.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := probes.Liveness(req.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "down", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		components, err := probes.Report(req.Context())
		body := map[string]any{"status": "ok", "components": components}
		if err != nil {
			body["status"] = "not_ready"
			body["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		writeJSON(w, http.StatusOK, body)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
