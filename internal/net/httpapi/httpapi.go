// Package httpapi mounts the out-of-band HTTP surface: health, room lookup,
// metrics, and the websocket entry point.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partyhall/server/internal/room"
)

// HealthResponse is the /healthz payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Rooms   int    `json:"rooms"`
	Players int    `json:"players"`
}

// Config wires the router's collaborators.
type Config struct {
	Registry  *room.Registry
	Gatherer  prometheus.Gatherer
	WSHandler http.HandlerFunc
	StartedAt time.Time
}

// NewRouter builds the chi mux.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		rooms, players := cfg.Registry.Counts()
		writeJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(cfg.StartedAt).Round(time.Second).String(),
			Rooms:   rooms,
			Players: players,
		})
	})

	r.Get("/api/rooms/{code}", func(w http.ResponseWriter, req *http.Request) {
		code := chi.URLParam(req, "code")
		rm, ok := cfg.Registry.Lookup(code)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
			return
		}
		writeJSON(w, http.StatusOK, rm.Snapshot())
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	if cfg.WSHandler != nil {
		r.Get("/ws", cfg.WSHandler)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
