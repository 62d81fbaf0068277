package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub bridges Redis pub/sub to WebSocket clients. Each connection gets its
// own subscription to the home's channel; events published by the engine
// (possibly from another process) reach every connected client.
type Hub struct {
	redis *redis.Client
}

// NewHub creates a WebSocket fan-out hub
func NewHub(client *redis.Client) *Hub {
	return &Hub{redis: client}
}

// ServeWS upgrades the request and streams the home's events until the
// client disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, homeID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("REALTIME: websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sub := h.redis.Subscribe(ctx, ChannelFor(homeID))

	go func() {
		defer cancel()
		// Read loop only detects close; clients do not send messages.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		sub.Close()
		conn.Close()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
