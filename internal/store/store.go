package store

import (
	"context"
	"time"
)

// DefaultHistoryLimit is the result cap applied when a caller asks for zero or fewer messages.
const DefaultHistoryLimit = 50

// Message represents a persisted chat message.
type Message struct {
	ID        int64
	Room      string
	Author    string
	Content   string
	CreatedAt time.Time
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message. The store assigns ID and CreatedAt;
	// CreatedAt never goes backwards within a room.
	AppendMessage(ctx context.Context, msg *Message) error

	// ListMessages returns up to limit messages of a room, newest first.
	// An unknown room yields an empty slice.
	ListMessages(ctx context.Context, room string, limit int) ([]*Message, error)
}

// Store aggregates the storage interfaces used by the server.
type Store interface {
	MessageStore

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}

// NormalizeLimit applies the default cap to non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
