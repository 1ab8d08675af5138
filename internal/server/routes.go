package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tyrowin/messenger/internal/metrics"
)

// SetupRoutes returns the application router. gatherer backs /metrics and
// may be nil to leave that route out.
func SetupRoutes(hub *Hub, gatherer prometheus.Gatherer) http.Handler {
	origins := newOriginPolicy(hub.cfg.AllowedOrigins, hub.logger)

	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthzHandler(hub)).Methods(http.MethodGet)
	r.HandleFunc("/ws", WebSocketHandler(hub, newUpgrader(origins)))
	r.HandleFunc("/test", TestPageHandler(hub)).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer)).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware(origins))
	api.HandleFunc("/messages", MessagesHandler(hub)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/users", UsersHandler(hub)).Methods(http.MethodGet, http.MethodOptions)

	return r
}

// corsMiddleware echoes allowed origins on /api responses and answers
// preflight requests.
func corsMiddleware(origins *originPolicy) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origins.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
