// Package notify pushes server-side events (video processing results,
// engagement activity) to connected clients over WebSocket.
// Uses github.com/coder/websocket for context-aware connections.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zfogg/clipstream/backend/internal/logger"
	"go.uber.org/zap"
)

// Event types pushed to clients
const (
	EventVideoProcessed  = "video_processed"
	EventVideoFailed     = "video_failed"
	EventNewComment      = "new_comment"
	EventNewReaction     = "new_reaction"
	EventSystem          = "system"
)

// Event is the JSON envelope sent to clients
type Event struct {
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent builds an event stamped with the current time
func NewEvent(eventType string, payload map[string]interface{}) *Event {
	return &Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Hub tracks connected clients by user and fans events out to them
type Hub struct {
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	unicast    chan *userEvent

	mu sync.RWMutex

	activeConnections atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
}

type userEvent struct {
	userID string
	event  *Event
}

// NewHub creates a hub; call Run in a goroutine to start it
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		unicast:    make(chan *userEvent, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run processes hub events until Shutdown is called
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case ue := <-h.unicast:
			h.deliver(ue.userID, ue.event)
		}
	}
}

// SendToUser queues an event for all of a user's connections. Drops the
// event if the hub is shutting down.
func (h *Hub) SendToUser(userID string, event *Event) {
	select {
	case h.unicast <- &userEvent{userID: userID, event: event}:
	case <-h.ctx.Done():
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// ActiveConnections returns the current connection count
func (h *Hub) ActiveConnections() int64 {
	return h.activeConnections.Load()
}

// IsUserOnline reports whether the user has any open connections
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Shutdown stops the hub and closes all connections
func (h *Hub) Shutdown() {
	h.cancel()
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.activeConnections.Add(1)

	logger.Log.Debug("notify client connected",
		zap.String("user_id", client.UserID),
		zap.Int64("active", h.activeConnections.Load()))
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.send)
	h.activeConnections.Add(-1)

	logger.Log.Debug("notify client disconnected",
		zap.String("user_id", client.UserID),
		zap.Int64("active", h.activeConnections.Load()))
}

func (h *Hub) deliver(userID string, event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.clients[userID]
	if !ok || len(clients) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("failed to marshal notify event", zap.Error(err))
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			// Slow consumer, drop the connection
			go h.Unregister(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			close(client.send)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.activeConnections.Store(0)
}
