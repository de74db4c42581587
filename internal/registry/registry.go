package registry

import (
	"sync"

	"carematch/internal/domain"
	"carematch/pkg/logger"
)

// Conn is one live participant connection. Send must not block the caller
// indefinitely; a failing connection is pruned from the room.
type Conn interface {
	Send(event domain.RealtimeEvent) error
	Close() error
}

// Registry tracks which connections are currently listening on each room. It
// holds no durable state: the store is the source of truth and the registry is
// rebuilt as clients reconnect after a restart.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{}
	log   logger.Logger
}

func New(log logger.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]map[Conn]struct{}),
		log:   log,
	}
}

func (r *Registry) Join(roomID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[roomID]
	if !ok {
		conns = make(map[Conn]struct{})
		r.rooms[roomID] = conns
	}
	conns[conn] = struct{}{}
}

// Leave is idempotent; a connection already gone is not an error, disconnect
// races end up here from both sides.
func (r *Registry) Leave(roomID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.rooms, roomID)
	}
}

// Broadcast delivers the event to every connection registered for the room.
// Delivery is best-effort: a connection that fails to accept the event is
// closed and removed, never retried. Durability lives in the store.
func (r *Registry) Broadcast(roomID string, event domain.RealtimeEvent) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.rooms[roomID]))
	for conn := range r.rooms[roomID] {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	var dead []Conn
	for _, conn := range conns {
		if err := conn.Send(event); err != nil {
			r.log.Warn("Dropping dead connection from room", "room_id", roomID, "error", err)
			dead = append(dead, conn)
		}
	}

	for _, conn := range dead {
		r.Leave(roomID, conn)
		_ = conn.Close()
	}
}

// RoomSize reports how many connections are listening on a room.
func (r *Registry) RoomSize(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
