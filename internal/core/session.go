package core

import (
	"slices"
	"sync"
)

// SessionState is the lifecycle state of one connection.
type SessionState int

const (
	// StateConnected: transport open, no room membership.
	StateConnected SessionState = iota
	// StateJoined: transport open and member of at least one room.
	StateJoined
	// StateDisconnected is terminal.
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session tracks join status for one transport connection.
type Session struct {
	ID string

	mu    sync.Mutex
	state SessionState
	// joined holds rooms in join order; the last entry is the current room.
	joined []string
}

func newSession(id string) *Session {
	return &Session{ID: id, state: StateConnected}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentRoom returns the most recently joined room still held, or "" if none.
func (s *Session) CurrentRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.joined) == 0 {
		return ""
	}
	return s.joined[len(s.joined)-1]
}

// markJoined moves room to the end of the join order. With replace set,
// every other room is forgotten.
func (s *Session) markJoined(room string, replace bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	if replace {
		s.joined = s.joined[:0]
	} else {
		s.joined = slices.DeleteFunc(s.joined, func(r string) bool { return r == room })
	}
	s.joined = append(s.joined, room)
	s.state = StateJoined
	return true
}

// markLeft drops room from the join order.
func (s *Session) markLeft(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return
	}
	s.joined = slices.DeleteFunc(s.joined, func(r string) bool { return r == room })
	if len(s.joined) == 0 {
		s.state = StateConnected
	}
}

// markDisconnected moves to the terminal state. Returns false if already there.
func (s *Session) markDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	s.joined = nil
	return true
}
