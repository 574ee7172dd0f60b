package handlers

import (
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/CrowderSoup/admin-panel/services"
)

// WebSocketHandler upgrades authenticated requests and attaches them to the
// hub, which pushes invalidation events.
type WebSocketHandler struct {
	hub      *services.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler accepts connections from the given origins; "*" or an
// empty list allows any origin.
func NewWebSocketHandler(hub *services.Hub, origins []string) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	} else {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return slices.Contains(origins, r.Header.Get("Origin"))
		}
	}
	return h
}

func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Error upgrading to WebSocket")
		return
	}

	client := &services.Client{
		Hub:      h.hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		Username: sess.Username,
	}
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
