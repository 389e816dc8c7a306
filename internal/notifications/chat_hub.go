// Package notifications relays chat events between sockets in the same room.
// It is a best-effort real-time layer; messages are durable only in the
// relational store.
package notifications

import (
	"context"
	"sort"
	"sync"

	"murmur/internal/cache"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/observability"
)

// ChatEvent is the frame pushed to the other members of a room.
type ChatEvent struct {
	Action  string             `json:"action"`
	Message models.MessageView `json:"message"`
}

// ChatHub tracks the sockets connected to each room.
type ChatHub struct {
	mu sync.RWMutex

	// Map: roomID -> set of Clients
	rooms map[string]map[*Client]struct{}

	store *cache.Store
}

// NewChatHub creates a hub mirroring presence into store. store may be nil.
func NewChatHub(store *cache.Store) *ChatHub {
	return &ChatHub{
		rooms: make(map[string]map[*Client]struct{}),
		store: store,
	}
}

// Name returns a human-readable identifier for this hub.
func (h *ChatHub) Name() string { return "chat hub" }

// Join adds c to its room.
func (h *ChatHub) Join(ctx context.Context, c *Client) error {
	h.mu.Lock()
	clients, ok := h.rooms[c.RoomID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[c.RoomID] = clients
	}
	clients[c] = struct{}{}
	count := len(clients)
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	observability.WebSocketRoomConnections.WithLabelValues(c.RoomID).Set(float64(count))
	middleware.Logger.InfoContext(ctx, "chat socket joined", "user_id", c.UserID, "room_id", c.RoomID, "connections", count)

	if h.store == nil {
		return nil
	}
	return h.store.AddPresence(ctx, c.RoomID, c.UserID)
}

// Leave removes c from its room. It is safe to call more than once.
func (h *ChatHub) Leave(ctx context.Context, c *Client) {
	h.mu.Lock()
	clients, ok := h.rooms[c.RoomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := clients[c]; !member {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	count := len(clients)
	if count == 0 {
		delete(h.rooms, c.RoomID)
	}
	h.mu.Unlock()

	c.shutdown()
	observability.WebSocketConnectionsTotal.Dec()
	if count == 0 {
		observability.WebSocketRoomConnections.DeleteLabelValues(c.RoomID)
	} else {
		observability.WebSocketRoomConnections.WithLabelValues(c.RoomID).Set(float64(count))
	}
	middleware.Logger.InfoContext(ctx, "chat socket left", "user_id", c.UserID, "room_id", c.RoomID, "connections", count)

	if h.store == nil {
		return
	}
	var err error
	if count == 0 {
		err = h.store.ClearPresence(ctx, c.RoomID)
	} else {
		err = h.store.RemovePresence(ctx, c.RoomID, c.UserID)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "chat presence update failed", "room_id", c.RoomID, "error", err)
	}
}

// Broadcast sends event to every socket in roomID except sender. It returns
// the number of sockets that accepted the frame.
func (h *ChatHub) Broadcast(roomID string, sender *Client, event ChatEvent) int {
	payload, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.Error("chat event marshal failed", "room_id", roomID, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.rooms[roomID] {
		if client == sender {
			continue
		}
		if client.TrySend(payload) {
			delivered++
		}
	}
	observability.MessageThroughput.WithLabelValues(event.Action).Inc()
	return delivered
}

// Present lists the users connected to roomID, one entry per socket.
func (h *ChatHub) Present(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]string, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		users = append(users, client.UserID)
	}
	sort.Strings(users)
	return users
}

// Shutdown closes every socket and clears presence.
func (h *ChatHub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for roomID, clients := range rooms {
		for client := range clients {
			client.shutdown()
			observability.WebSocketConnectionsTotal.Dec()
		}
		observability.WebSocketRoomConnections.DeleteLabelValues(roomID)
		if h.store != nil {
			if err := h.store.ClearPresence(ctx, roomID); err != nil {
				return err
			}
		}
	}
	return nil
}
