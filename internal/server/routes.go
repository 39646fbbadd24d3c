package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Tyrowin/challengehub/internal/observability"
)

// RouteOptions carries what the HTTP surface needs besides the hub.
type RouteOptions struct {
	AllowedOrigins []string
	Metrics        *observability.Metrics
	Logger         *slog.Logger
}

// SetupRoutes configures the chi router with the WebSocket endpoint, health
// checks, metrics, the test page and the room snapshot API.
func SetupRoutes(hub *Hub, opts RouteOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = hub.logger
	}
	upgrader := newUpgrader(newOriginPolicy(opts.AllowedOrigins, logger))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", HealthHandler)
	r.Get("/healthz", HealthzHandler(hub))
	r.Get("/ws", WebSocketHandler(hub, upgrader))
	r.Get("/test", TestPageHandler)
	r.Get("/api/challenges/{id}/room", RoomHandler(hub))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	return r
}
