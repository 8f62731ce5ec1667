package internal

import "sync"

// Hub is the room directory: it maps room keys to live rooms and owns all
// membership changes. It is shared mutable state, so every operation takes
// the hub mutex.
type Hub struct {
	mutex sync.RWMutex
	rooms map[string]*Room
}

// builds an empty hub ready to serve websocket sessions
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

// a room is a named broadcast group of sessions. Rooms are created on first
// join and garbage-collected when the last member leaves.
type Room struct {
	key     string
	members map[*Session]bool
}

func newRoom(key string) *Room {
	return &Room{key: key, members: make(map[*Session]bool)}
}

// takes a peek into the room map. We use it for the lightweight /exists
func (hub *Hub) Exists(key string) bool {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	_, ok := hub.rooms[key]
	return ok
}

// Join places the session in the room, creating the room on demand. Joining
// a room the session is already in is a no-op; joining a different room
// moves the session, keeping it in at most one room at a time.
func (hub *Hub) Join(session *Session, key string) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if current := session.room; current != nil {
		if current.key == key {
			return
		}
		hub.removeLocked(session)
	}
	room, exists := hub.rooms[key]
	if !exists {
		room = newRoom(key)
		hub.rooms[key] = room
	}
	room.members[session] = true
	session.room = room
}

// Leave removes the session from whatever room it occupies. No departure
// notice is broadcast. Empty rooms are deleted.
func (hub *Hub) Leave(session *Session) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.removeLocked(session)
}

func (hub *Hub) removeLocked(session *Session) {
	room := session.room
	if room == nil {
		return
	}
	delete(room.members, session)
	session.room = nil
	if len(room.members) == 0 {
		delete(hub.rooms, room.key)
	}
}

// Broadcast delivers the payload to every member of the room except the
// optional excluded sender. An unknown room is a silent no-op. A member
// whose send queue is full is dropped so it cannot stall the room.
func (hub *Hub) Broadcast(key string, payload []byte, exclude *Session) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	room, exists := hub.rooms[key]
	if !exists {
		return
	}
	for member := range room.members {
		if member == exclude {
			continue
		}
		if !member.enqueue(payload) {
			delete(room.members, member)
			member.room = nil
			member.close()
		}
	}
	if len(room.members) == 0 {
		delete(hub.rooms, room.key)
	}
}

// RoomKey returns the key of the session's current room, or "" when it has
// not joined one.
func (hub *Hub) RoomKey(session *Session) string {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	if session.room == nil {
		return ""
	}
	return session.room.key
}

func (hub *Hub) size(key string) int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	if room, exists := hub.rooms[key]; exists {
		return len(room.members)
	}
	return 0
}

// Occupancy reports every live room and its member count for /stats.
func (hub *Hub) Occupancy() map[string]int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	counts := make(map[string]int, len(hub.rooms))
	for key, room := range hub.rooms {
		counts[key] = len(room.members)
	}
	return counts
}
