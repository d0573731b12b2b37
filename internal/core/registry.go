package core

import (
	"slices"
	"sync"
)

// Registry maps room names to the connections subscribed to them.
// A room exists only while it has at least one member.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // room -> conn ids
	conns map[string]map[string]struct{} // conn id -> rooms
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to room, creating the room if needed. Returns true if newly added.
func (r *Registry) Join(room, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}

	joined, ok := r.conns[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.conns[connID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes connID from room and evicts the room once empty. Returns true if removed.
func (r *Registry) Leave(room, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, connID)
}

func (r *Registry) leaveLocked(room, connID string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.conns[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.conns, connID)
		}
	}
	return true
}

// LeaveAll removes connID from every room and returns the rooms it left, sorted.
func (r *Registry) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.conns[connID]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	for _, room := range left {
		r.leaveLocked(room, connID)
	}
	slices.Sort(left)
	return left
}

// MembersOf returns a point-in-time copy of the room's members.
func (r *Registry) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns the rooms connID belongs to, sorted.
func (r *Registry) RoomsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.conns[connID]
	out := make([]string, 0, len(joined))
	for room := range joined {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

// IsMember reports whether connID is in room.
func (r *Registry) IsMember(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

// RoomCount returns the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Reset drops every membership. Used at server stop.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.rooms)
	clear(r.conns)
}
