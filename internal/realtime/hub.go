// Package realtime holds the live-connection sink: a websocket hub with one
// room per recipient id. Pushes are best-effort; a slow or dead connection is
// dropped rather than blocking the caller.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	Log *zap.Logger

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	rooms    map[int64]map[string]*client
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		Log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		rooms: make(map[int64]map[string]*client),
	}
}

// Serve upgrades the request and joins the connection to usuarioID's room
// until the peer goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, usuarioID int64) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade failed", zap.Int64("usuario_id", usuarioID), zap.Error(err))
		return
	}
	c := &client{id: uuid.New().String(), conn: conn, send: make(chan []byte, 16)}
	h.join(usuarioID, c)
	defer h.leave(usuarioID, c)

	go func() {
		for msg := range c.send {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				conn.Close()
				return
			}
		}
	}()

	// Drain reads; the hub is push-only.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Push serializes payload and fans it out to every connection in the room.
func (h *Hub) Push(usuarioID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.Log.Error("realtime payload marshal failed", zap.Error(err))
		return
	}
	// The lock is held across the sends so a concurrent leave cannot close a
	// channel mid-push; the buffered select keeps this non-blocking.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[usuarioID] {
		select {
		case c.send <- data:
		default:
			h.Log.Debug("realtime client buffer full, dropping message",
				zap.Int64("usuario_id", usuarioID), zap.String("client", c.id))
		}
	}
}

// Connected returns how many live connections usuarioID has.
func (h *Hub) Connected(usuarioID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[usuarioID])
}

func (h *Hub) join(usuarioID int64, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[usuarioID] == nil {
		h.rooms[usuarioID] = make(map[string]*client)
	}
	h.rooms[usuarioID][c.id] = c
}

func (h *Hub) leave(usuarioID int64, c *client) {
	h.mu.Lock()
	if room := h.rooms[usuarioID]; room != nil {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, usuarioID)
		}
	}
	h.mu.Unlock()
	close(c.send)
	c.conn.Close()
}
