// WebSocket hub for plant event notifications.
package asset

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/energysys/dashboard/internal/metrics"
)

// Message types sent to WebSocket clients.
const (
	MsgEventStarted  = "plant_event_started"
	MsgEventFinished = "plant_event_finished"
)

// WSMessage is a JSON message sent to WebSocket clients.
type WSMessage struct {
	Type             string `json:"type"`
	EventID          int64  `json:"event_id"`
	PowerPlantID     int64  `json:"power_plant_id"`
	PlantName        string `json:"plant_name"`
	OrganizationID   int64  `json:"organization_id"`
	EventType        string `json:"event_type"`
	PlantStatus      string `json:"plant_status"`
	AffectedCapacity string `json:"affected_capacity,omitempty"`
	At               string `json:"at"`
}

type client struct {
	conn           *websocket.Conn
	organizationID int64
	all            bool // super admins receive every organization's events
}

// WSHub manages WebSocket connections and pushes plant event changes to
// the clients allowed to see them.
type WSHub struct {
	clients    map[*websocket.Conn]*client
	broadcast  chan WSMessage
	register   chan *client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*websocket.Conn]*client),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *client),
		unregister: make(chan *websocket.Conn),
	}
}

// Run starts the hub's main event loop. Must be called in a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.conn] = c
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))
			slog.Info("ws client connected", "total", total, "organization_id", c.organizationID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(total))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.mu.Lock()
			for conn, c := range h.clients {
				if !c.all && c.organizationID != msg.OrganizationID {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for delivery.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop if buffer full to avoid blocking event writes.
		slog.Warn("ws broadcast dropped", "type", msg.Type, "event_id", msg.EventID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws. The
// caller's session decides which organizations' events it receives.
func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	h.register <- &client{conn: conn, organizationID: sess.OrganizationID, all: sess.SuperAdmin()}

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer func() { h.unregister <- conn }()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()

	// Ping ticker to keep connection alive through proxies.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			h.mu.RLock()
			_, ok := h.clients[conn]
			h.mu.RUnlock()
			if !ok {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()
}
