// Package memory keeps messages in process memory. It backs tests and the
// "memory" store driver for local runs where durability does not matter.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory store closed")

// Store implements store.Store on top of per-room slices.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string][]store.Message
	nextID int64
	closed bool
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty store that stamps messages with now().
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		rooms: make(map[string][]store.Message),
		now:   now,
	}
}

// AppendMessage stores a copy of msg and fills in ID and CreatedAt.
func (s *Store) AppendMessage(ctx context.Context, msg *store.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	createdAt := s.now().UTC()
	if msgs := s.rooms[msg.Room]; len(msgs) > 0 {
		if last := msgs[len(msgs)-1].CreatedAt; createdAt.Before(last) {
			createdAt = last
		}
	}

	s.nextID++
	msg.ID = s.nextID
	msg.CreatedAt = createdAt
	s.rooms[msg.Room] = append(s.rooms[msg.Room], *msg)
	return nil
}

// ListMessages returns up to limit messages of a room, newest first.
func (s *Store) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	msgs := s.rooms[room]
	limit = min(store.NormalizeLimit(limit), len(msgs))

	out := make([]*store.Message, 0, limit)
	for i := len(msgs) - 1; i >= len(msgs)-limit; i-- {
		msg := msgs[i]
		out = append(out, &msg)
	}
	return out, nil
}

// Ping reports whether the store is still open.
func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the store closed; the data is dropped.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.rooms = nil
	return nil
}
