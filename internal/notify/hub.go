// Package notify broadcasts permit lifecycle events to websocket clients.
// Delivery is at-most-once: a client with a full queue loses the message
// rather than backpressure a permit transaction.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"athens/internal/auth"
	"athens/internal/models"
)

const (
	clientQueue  = 16
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type client struct {
	conn     *websocket.Conn
	tenantID string
	userID   string
	send     chan []byte
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	lg      *zap.SugaredLogger
}

func NewHub(lg *zap.SugaredLogger) *Hub {
	return &Hub{clients: map[*client]struct{}{}, lg: lg}
}

// ServeWS upgrades an authenticated request and pumps messages until the
// peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims.TenantID == "" {
		http.Error(w, "no tenant context", http.StatusForbidden)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, tenantID: claims.TenantID, userID: claims.Subject, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

// readPump exists only to observe the close frame.
func (h *Hub) readPump(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *Hub) broadcast(tenantID, userID string, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.tenantID != tenantID {
			continue
		}
		if userID != "" && c.userID != userID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			// Queue full; at-most-once means the message is lost.
		}
	}
}

// PermitEvent implements ptw.EventSink: every client of the permit's
// tenant hears about the transition.
func (h *Hub) PermitEvent(event string, p models.Permit) {
	msg, err := json.Marshal(map[string]any{
		"kind":          "permit_event",
		"event":         event,
		"permit_id":     p.ID,
		"permit_number": p.PermitNumber,
		"status":        p.Status,
		"project_id":    p.ProjectID,
	})
	if err != nil {
		return
	}
	h.broadcast(p.TenantID, "", msg)
}

// Notify implements escalation.Notifier with a user-targeted message.
func (h *Hub) Notify(userID, permitID, message string) {
	msg, err := json.Marshal(map[string]any{
		"kind":      "notice",
		"permit_id": permitID,
		"message":   message,
	})
	if err != nil {
		return
	}
	h.mu.RLock()
	var tenants []string
	for c := range h.clients {
		if c.userID == userID {
			tenants = append(tenants, c.tenantID)
		}
	}
	h.mu.RUnlock()
	for _, t := range tenants {
		h.broadcast(t, userID, msg)
	}
}
