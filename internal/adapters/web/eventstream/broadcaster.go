// Package eventstream is the live decision/event feed: a
// gorilla/websocket broadcaster that pushes each Decision as it is made
// (SPEC_FULL.md §B), for an external dashboard to consume. AEGIS provides
// the feed, not the dashboard. Grounded on the teacher's WSManager
// (internal/adapters/web/websocket/ws_manager.go) client-map-plus-mutex
// broadcast shape, stripped of the teacher's auth/session machinery —
// this is an ops feed, not a multi-tenant UI backend.
package eventstream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aegis-gateway/aegis/internal/core/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is the envelope every feed message is wrapped in.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Broadcaster fans each Decision out to every connected websocket client.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func New() *Broadcaster {
	return &Broadcaster{clients: make(map[*websocket.Conn]bool)}
}

// HandleWebSocket upgrades the connection and registers it as a feed
// subscriber until it disconnects.
func (b *Broadcaster) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("eventstream upgrade failed", "error", err)
		return
	}

	b.mu.Lock()
	b.clients[conn] = true
	b.mu.Unlock()

	go func() {
		defer conn.Close()
		defer func() {
			b.mu.Lock()
			delete(b.clients, conn)
			b.mu.Unlock()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// BroadcastDecision pushes one Decision to every subscriber.
func (b *Broadcaster) BroadcastDecision(d domain.Decision) {
	b.broadcast(Event{Type: "decision", Payload: d})
}

func (b *Broadcaster) broadcast(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("eventstream marshal failed", "error", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(b.clients, conn)
		}
	}
}
