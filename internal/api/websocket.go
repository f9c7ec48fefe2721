package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dkjr-client/internal/render"
	"dkjr-client/internal/world"
)

const (
	// MaxWSConnectionsTotal caps WebSocket connections across all IPs
	MaxWSConnectionsTotal = 200

	// MaxWSConnectionsPerIP caps WebSocket connections from one IP
	MaxWSConnectionsPerIP = 10

	// BroadcastFPS is how often new snapshots are pushed to clients
	BroadcastFPS = 10

	wsWriteTimeout = time.Second
	wsReadLimit    = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if IsAllowedOrigin(origin) {
			return true
		}
		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsEvent is the envelope of every message pushed to clients
type wsEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	ip   string
}

// WebSocketHub pushes world snapshots to every connected browser
type WebSocketHub struct {
	clients    map[*websocket.Conn]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *websocket.Conn
	mu         sync.RWMutex

	limiter *ConnLimiter

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewWebSocketHub creates a hub. Call Run to start it.
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*websocket.Conn]*wsClient),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *websocket.Conn),
		limiter:    NewConnLimiter(MaxWSConnectionsPerIP),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until Stop
func (h *WebSocketHub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.stopChan:
			h.mu.Lock()
			for conn, c := range h.clients {
				conn.Close()
				h.limiter.Release(c.ip)
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			UpdateWSConnections(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			count := len(h.clients)
			h.mu.Unlock()

			log.Printf("📱 Client connected from %s (%d total)", c.ip, count)
			UpdateWSConnections(count)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			h.send(msg)
		}
	}
}

// send writes msg to every client, dropping the ones that fail
func (h *WebSocketHub) send(msg []byte) {
	h.mu.RLock()
	var failed []*websocket.Conn
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	h.mu.RUnlock()

	for _, conn := range failed {
		h.remove(conn)
	}
	IncrementWSMessages()
}

func (h *WebSocketHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	c, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		h.limiter.Release(c.ip)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	conn.Close()
	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
}

// Stop closes every connection and ends Run. Safe to call more than once.
func (h *WebSocketHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
}

// Broadcast queues an event for all clients. Drops it when the queue is full.
func (h *WebSocketHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(wsEvent{Event: event, Data: data})
	if err != nil {
		log.Printf("⚠️ WebSocket marshal failed: %v", err)
		return
	}

	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SnapshotLoop returns a render loop that broadcasts each new snapshot
// while at least one client is connected.
func (h *WebSocketHub) SnapshotLoop(source render.SnapshotSource) *render.Loop {
	return render.NewLoop(source, BroadcastFPS, func(snap *world.Snapshot) {
		if h.ClientCount() == 0 {
			return
		}
		h.Broadcast("world:snapshot", snap)
	})
}

// HandleWebSocket upgrades the request and registers the connection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.limiter.Acquire(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.limiter.Release(ip)
		return
	}

	select {
	case h.register <- &wsClient{conn: conn, ip: ip}:
	case <-h.stopChan:
		conn.Close()
		h.limiter.Release(ip)
		return
	}

	// Clients only listen; reading detects when they go away.
	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-h.done:
			}
		}()

		conn.SetReadLimit(wsReadLimit)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
