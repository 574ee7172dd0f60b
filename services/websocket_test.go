package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 16), Username: r.URL.Query().Get("user")}
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, user string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+user, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHubPingPong(t *testing.T) {
	_, url := startHub(t)
	conn := dial(t, url, "admin")

	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestHubBroadcast(t *testing.T) {
	hub, url := startHub(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")

	// Registration is asynchronous; a ping round trip proves both are in.
	for _, c := range []*websocket.Conn{alice, bob} {
		require.NoError(t, c.WriteJSON(WebSocketMessage{Type: "ping"}))
		require.Equal(t, "pong", readMessage(t, c).Type)
	}

	hub.Broadcast(WebSocketMessage{Type: EventKanbanChanged}, "alice")
	msg := readMessage(t, bob)
	assert.Equal(t, EventKanbanChanged, msg.Type)
	assert.Equal(t, "alice", msg.User)

	hub.Notify(EventQuotesChanged)
	assert.Equal(t, EventQuotesChanged, readMessage(t, alice).Type)
	assert.Equal(t, EventQuotesChanged, readMessage(t, bob).Type)
}
