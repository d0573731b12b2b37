package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/memory"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

type testEnv struct {
	gateway  *Gateway
	registry *Registry
	clients  *Clients
	store    store.MessageStore
}

func newTestEnv(t *testing.T, st store.MessageStore, opts GatewayOptions) *testEnv {
	t.Helper()

	if st == nil {
		st = memory.New()
	}
	registry := NewRegistry()
	clients := NewClients()
	gw := NewGateway(registry, st, clients, opts, nil)
	t.Cleanup(gw.Close)

	return &testEnv{gateway: gw, registry: registry, clients: clients, store: st}
}

func (e *testEnv) connect(t *testing.T, id string) *Client {
	t.Helper()
	return e.connectBuffered(t, id, 16)
}

func (e *testEnv) connectBuffered(t *testing.T, id string, buffer int) *Client {
	t.Helper()

	c := NewClient(id, buffer)
	if err := e.clients.Add(c); err != nil {
		t.Fatalf("add client %s: %v", id, err)
	}
	if _, err := e.gateway.Connect(id); err != nil {
		t.Fatalf("connect %s: %v", id, err)
	}
	return c
}

func (e *testEnv) join(t *testing.T, id, room string) {
	t.Helper()
	if err := e.gateway.OnJoinRoom(context.Background(), id, room); err != nil {
		t.Fatalf("join %s -> %s: %v", id, room, err)
	}
}

// failingStore fails appends and/or queries on demand and counts writes.
type failingStore struct {
	mu         sync.Mutex
	inner      store.MessageStore
	failAppend bool
	failList   bool
	appends    int
}

var errStoreDown = errors.New("store down")

func (f *failingStore) AppendMessage(ctx context.Context, msg *store.Message) error {
	f.mu.Lock()
	f.appends++
	fail := f.failAppend
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.inner.AppendMessage(ctx, msg)
}

func (f *failingStore) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	f.mu.Lock()
	fail := f.failList
	f.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return f.inner.ListMessages(ctx, room, limit)
}

func (f *failingStore) appendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appends
}

// blackholeTransport rejects every delivery, standing in for a crash between persist and broadcast.
type blackholeTransport struct{}

func (blackholeTransport) Send(string, *Event) error { return ErrTransport }
