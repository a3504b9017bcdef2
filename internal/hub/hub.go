// Package hub owns the room subscription registry: which live connections
// are subscribed to which room, and the fan-out of encoded frames to them.
package hub

import (
	"context"
	"sync"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
	"github.com/JunyongPark97/SIIOT-chat-server/pkg/log"
)

// roomFrame is one fan-out unit: an encoded frame for every current
// subscriber of a room.
type roomFrame struct {
	RoomID  string
	Data    []byte
	Exclude string // client ID to skip, "" for none
}

// Hub tracks clients and per-room subscriber sets. Register/unregister and
// fan-out are serialized through Run's select loop, which is the single
// sequencing point giving per-room delivery order.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	clientRoom map[string]string             // clientID -> roomID

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomFrame

	config config.WebSocketConfig
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		clientRoom: make(map[string]string),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomFrame, 256),
		config:     cfg,
	}
}

// Run processes register/unregister/broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			l := log.L()
			l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.removeClient(client)

		case frame := <-h.broadcast:
			h.fanOut(frame)
		}
	}
}

// Register adds a client to the hub's client table.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from all hub state and closes its Send
// channel. Safe to call for clients that never joined a room.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Join adds the client to roomID's subscriber set. Idempotent per
// client-room pair; a client is in at most one room, so joining a second
// room leaves the first.
func (h *Hub) Join(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.clientRoom[client.ID]; ok {
		if prev == roomID {
			return
		}
		h.leaveLocked(prev, client.ID)
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	h.clientRoom[client.ID] = roomID

	l := log.L()
	l.Info().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, roomID).Msg("client joined room")
}

// Leave removes the client from roomID's subscriber set. No-op when the
// client is not subscribed; disconnects may race handshake failures.
func (h *Hub) Leave(roomID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, client.ID)
}

// leaveLocked removes a client from a room and garbage-collects the empty
// subscriber set. Caller holds h.mu.
func (h *Hub) leaveLocked(roomID, clientID string) {
	subs, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := subs[clientID]; !ok {
		return
	}
	delete(subs, clientID)
	if len(subs) == 0 {
		delete(h.rooms, roomID)
	}
	delete(h.clientRoom, clientID)
}

// Subscribers returns a snapshot of roomID's current subscriber set.
// Iterating the snapshot during fan-out is never invalidated by concurrent
// join/leave.
func (h *Hub) Subscribers(roomID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(subs))
	for _, c := range subs {
		out = append(out, c)
	}
	return out
}

// SubscriberCount returns the size of roomID's subscriber set.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast enqueues an encoded frame for fan-out to every current
// subscriber of roomID. Exclude skips one client id ("" for none).
func (h *Hub) Broadcast(roomID string, data []byte, exclude string) {
	h.broadcast <- &roomFrame{RoomID: roomID, Data: data, Exclude: exclude}
}

// fanOut pushes a frame to each subscriber in the snapshot. A slow or
// closing client is dropped and scheduled for unregister; one bad
// connection never aborts delivery to the rest.
func (h *Hub) fanOut(frame *roomFrame) {
	for _, client := range h.Subscribers(frame.RoomID) {
		if client.ID == frame.Exclude {
			continue
		}
		if !client.Push(frame.Data) {
			l := log.L()
			l.Warn().Str(log.FieldConnID, client.ID).Str(log.FieldRoomID, frame.RoomID).Msg("send buffer full, dropping client")
			go h.Unregister(client)
		}
	}
}

// removeClient tears down all state for a client. Runs on the hub
// goroutine only.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		if roomID, joined := h.clientRoom[client.ID]; joined {
			h.leaveLocked(roomID, client.ID)
		}
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Msg("client unregistered")
}
