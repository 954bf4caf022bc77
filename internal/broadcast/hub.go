// Package broadcast fans engine events out to websocket subscribers grouped
// by (game, region). Delivery is fire-and-forget, at-most-once: a peer that
// cannot keep up is dropped, never waited on. Clients treat every event as a
// hint to re-fetch their personalized view.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"

	"golang.org/x/net/websocket"
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// peer serializes writes to one websocket connection. The JSON encoder is
// not safe for concurrent use, so every write goes through the mutex.
type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	encoder *json.Encoder
}

func newPeer(conn *websocket.Conn) *peer {
	return &peer{conn: conn, encoder: json.NewEncoder(conn)}
}

func (p *peer) send(env envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(env)
}

type roomKey struct {
	gameID string
	region int
}

type room struct {
	mu          sync.Mutex
	subscribers map[*peer]struct{}
}

func newRoom() *room {
	return &room{subscribers: make(map[*peer]struct{})}
}

func (r *room) join(p *peer) {
	r.mu.Lock()
	r.subscribers[p] = struct{}{}
	r.mu.Unlock()
}

func (r *room) leave(p *peer) bool {
	r.mu.Lock()
	delete(r.subscribers, p)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

func (r *room) snapshot() []*peer {
	r.mu.Lock()
	peers := make([]*peer, 0, len(r.subscribers))
	for p := range r.subscribers {
		peers = append(peers, p)
	}
	r.mu.Unlock()
	return peers
}

// Hub owns the room table. It satisfies the engine's Broadcaster contract.
type Hub struct {
	mu    sync.Mutex
	rooms map[roomKey]*room
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[roomKey]*room)}
}

func (h *Hub) room(key roomKey) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[key]
	if !ok {
		r = newRoom()
		h.rooms[key] = r
	}
	return r
}

// lookup returns the room without creating it; publishing to a region nobody
// watches allocates nothing.
func (h *Hub) lookup(key roomKey) (*room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[key]
	return r, ok
}

func (h *Hub) drop(key roomKey, p *peer) {
	h.mu.Lock()
	r, ok := h.rooms[key]
	h.mu.Unlock()
	if !ok {
		return
	}
	if r.leave(p) {
		h.mu.Lock()
		// Re-check: a peer may have joined between the leave and here.
		if cur, ok := h.rooms[key]; ok && cur == r {
			r.mu.Lock()
			if len(r.subscribers) == 0 {
				delete(h.rooms, key)
			}
			r.mu.Unlock()
		}
		h.mu.Unlock()
	}
}

// Publish sends payload to every subscriber of (gameID, region). Peers whose
// write fails are dropped and their connection closed; the event is lost for
// them, which the reconnect re-fetch covers.
func (h *Hub) Publish(gameID string, region int, payload any) {
	key := roomKey{gameID: gameID, region: region}
	r, ok := h.lookup(key)
	if !ok {
		return
	}
	env := envelope{Type: eventType(payload), Payload: payload}
	for _, p := range r.snapshot() {
		if err := p.send(env); err != nil {
			log.Printf("broadcast: drop peer of game %s region %d: %v", gameID, region, err)
			h.drop(key, p)
			_ = p.conn.Close()
		}
	}
}

// namer lets payload types label their own envelope.
type namer interface {
	EventType() string
}

func eventType(payload any) string {
	if n, ok := payload.(namer); ok {
		return n.EventType()
	}
	return "event"
}
