package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

// apiMessagesMax caps the limit query parameter of /api/messages.
const apiMessagesMax = 1000

func newUpgrader(origins *originPolicy) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
}

// WebSocketHandler upgrades GET requests and hands the connection to the hub,
// which starts the client's pumps.
func WebSocketHandler(hub *Hub, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if !hub.Register(client) {
			_ = conn.Close()
		}
	}
}

// MessagesHandler serves the newest broadcast messages as a JSON array. The
// optional limit parameter defaults to the configured replay limit.
func MessagesHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := hub.cfg.ReplayLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, apiMessagesMax)
		}
		writeJSON(w, hub.logger, http.StatusOK, hub.RecentMessages(limit))
	}
}

// UsersHandler serves the presence snapshot as a JSON array.
func UsersHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, hub.logger, http.StatusOK, hub.Users())
	}
}

type healthStatus struct {
	Status      string `json:"status"`
	Users       int    `json:"users"`
	Connections int    `json:"connections"`
}

// HealthHandler returns a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Messenger server is running!")
}

// HealthzHandler reports presence and connection counts as JSON.
func HealthzHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, hub.logger, http.StatusOK, healthStatus{
			Status:      "ok",
			Users:       hub.presence.Len(),
			Connections: hub.Connections(),
		})
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write json response", "error", err)
	}
}
