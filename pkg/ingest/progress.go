package ingest

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyseg/tinyseg/pkg/config"
)

// Event is one pipeline progress update, streamed to WebSocket clients so
// uploads of large datasets are observable while the cluster search runs.
type Event struct {
	Type      string      `json:"type"`
	JobID     string      `json:"job_id"`
	Business  string      `json:"business"`
	Stage     string      `json:"stage"`
	Detail    interface{} `json:"detail,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ProgressHub manages WebSocket connections for pipeline progress
// streaming.
type ProgressHub struct {
	// Registered clients
	clients map[*websocket.Conn]bool

	// Register requests from clients
	register chan *websocket.Conn

	// Unregister requests from clients
	unregister chan *websocket.Conn

	// Broadcast channel for progress events
	broadcast chan []byte

	mu sync.RWMutex
}

// NewProgressHub creates a new WebSocket hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, config.WSChannelBuffer),
		unregister: make(chan *websocket.Conn, config.WSChannelBuffer),
		broadcast:  make(chan []byte, config.WSBroadcastBuffer),
	}
}

// Run starts the hub's main loop.
func (h *ProgressHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Close all client connections on shutdown
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (total: %d)", count)
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected (total: %d)", count)
		case message := <-h.broadcast:
			h.mu.RLock()
			// Collect failed connections to unregister after releasing lock
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					log.Printf("WebSocket write error: %v", err)
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			for _, conn := range failed {
				h.unregister <- conn
			}
		}
	}
}

// Publish sends a progress event to all connected clients. Events are
// best-effort: with no clients, or a full channel, they are dropped.
func (h *ProgressHub) Publish(e Event) {
	if h == nil || !h.HasClients() {
		return
	}
	e.Type = "pipeline_progress"
	e.Timestamp = time.Now().Unix()

	message, err := json.Marshal(e)
	if err != nil {
		log.Printf("Failed to encode progress event: %v", err)
		return
	}

	select {
	case h.broadcast <- message:
	default:
		// Channel full, drop event to prevent blocking the pipeline
		log.Printf("Progress channel full, dropping event")
	}
}

// HasClients returns true if any WebSocket clients are connected.
func (h *ProgressHub) HasClients() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) > 0
}
