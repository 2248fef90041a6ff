package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"carhire/pkg/logger"
)

// Message is the JSON frame exchanged with clients in both directions.
type Message struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an outbound frame. Data that cannot be marshalled is dropped.
func NewMessage(msgType string, data interface{}) Message {
	msg := Message{Type: msgType, Timestamp: getCurrentTimestamp()}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			msg.Data = raw
		}
	}
	return msg
}

// Decode unmarshals the frame payload into dest.
func (m Message) Decode(dest interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, dest)
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		log:        log,
	}
}

// Run serves registrations until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// Register adds client to the hub immediately, so frames sent right after
// reach it.
func (h *Hub) Register(client *Client) {
	h.registerClient(client)
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	if client.UserID != "" {
		h.joinRoom(client, UserRoom(client.UserID))
	}
	h.log.WithUserID(client.UserID).Debug("WebSocket client registered")
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; ok {
		h.dropLocked(client)
		h.log.WithUserID(client.UserID).Debug("WebSocket client unregistered")
	}
}

// Disconnect removes client from the hub. Its writer then sends a close frame.
func (h *Hub) Disconnect(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		h.dropLocked(client)
	}
}

// dropLocked removes client from the hub and closes its send queue.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	for roomID := range client.rooms {
		if room, ok := h.rooms[roomID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	client.closeSend()
}

// UserRoom is the personal room every client of a user joins.
func UserRoom(userID string) string {
	return "user_" + userID
}

func TripRoom(tripID string) string {
	return "trip_" + tripID
}

// SendToRoom queues message for every client in the room. Clients whose queue is
// full are skipped for this frame.
func (h *Hub) SendToRoom(roomID string, message Message) {
	if message.RoomID == "" {
		message.RoomID = roomID
	}
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.rooms[roomID] {
		if !client.enqueue(data) {
			h.log.WithUserID(client.UserID).Warn("WebSocket send queue full, dropping frame")
		}
	}
}

func (h *Hub) SendToUser(userID string, message Message) {
	message.UserID = userID
	h.SendToRoom(UserRoom(userID), message)
}

func (h *Hub) JoinRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		h.joinRoom(client, roomID)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Online reports whether the user has at least one connected client.
func (h *Hub) Online(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[UserRoom(userID)]) > 0
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
