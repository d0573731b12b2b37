package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	msg := &store.Message{Room: "lobby", Author: "alice", Content: "hi"}
	if err := s.AppendMessage(ctx, msg); err != nil {
		t.Fatalf("append: %v", err)
	}

	if msg.ID == 0 {
		t.Fatalf("expected store-assigned id")
	}
	if !msg.CreatedAt.Equal(fixed) {
		t.Fatalf("expected created_at %v, got %v", fixed, msg.CreatedAt)
	}
}

func TestListMessagesNewestFirstWithCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const limit = 5
	for i := range limit + 5 {
		msg := &store.Message{Room: "lobby", Author: "alice", Content: fmt.Sprintf("m%d", i)}
		if err := s.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if err := s.AppendMessage(ctx, &store.Message{Room: "other", Author: "bob", Content: "elsewhere"}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	got, err := s.ListMessages(ctx, "lobby", limit)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != limit {
		t.Fatalf("expected %d messages, got %d", limit, len(got))
	}
	for i, msg := range got {
		want := fmt.Sprintf("m%d", limit+4-i)
		if msg.Content != want || msg.Room != "lobby" {
			t.Errorf("index %d: expected %s in lobby, got %+v", i, want, msg)
		}
	}
}

func TestListUnknownRoomIsEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.ListMessages(context.Background(), "ghost", 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCreatedAtNeverGoesBackwardsInRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	later := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Minute)

	s.now = func() time.Time { return later }
	first := &store.Message{Room: "lobby", Author: "a", Content: "1"}
	if err := s.AppendMessage(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}

	// wall clock stepped back
	s.now = func() time.Time { return earlier }
	second := &store.Message{Room: "lobby", Author: "a", Content: "2"}
	if err := s.AppendMessage(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}
	if second.CreatedAt.Before(first.CreatedAt) {
		t.Fatalf("created_at went backwards: %v < %v", second.CreatedAt, first.CreatedAt)
	}

	// other rooms are not clamped
	other := &store.Message{Room: "other", Author: "a", Content: "x"}
	if err := s.AppendMessage(ctx, other); err != nil {
		t.Fatalf("append other: %v", err)
	}
	if !other.CreatedAt.Equal(earlier) {
		t.Fatalf("expected other room to keep its own clock, got %v", other.CreatedAt)
	}
}

func TestAppendFailsWithoutSchema(t *testing.T) {
	s, err := NewWithSetup(":memory:", func(*sql.DB) error { return nil })
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	err = s.AppendMessage(context.Background(), &store.Message{Room: "r", Author: "a", Content: "c"})
	if err == nil {
		t.Fatalf("expected insert error without messages table")
	}
}
