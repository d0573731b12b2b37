package core

import (
	"fmt"
	"sync"
)

// Transport delivers events to connections. Send must not block on a slow recipient.
type Transport interface {
	Send(connID string, ev *Event) error
}

// Client is a connection as seen by the core layer: an id plus a bounded outbound queue.
type Client struct {
	ID     string
	Events chan *Event
}

// NewClient constructs a client with a buffered event queue.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
	}
}

// Clients is a Transport backed by per-client channels.
// A full queue drops the event for that client only.
type Clients struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

var _ Transport = (*Clients)(nil)

// NewClients returns an empty client set.
func NewClients() *Clients {
	return &Clients{clients: make(map[string]*Client)}
}

// Add registers a client. Returns ErrDuplicateConn if the id is taken.
func (cs *Clients) Add(c *Client) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, exists := cs.clients[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConn, c.ID)
	}
	cs.clients[c.ID] = c
	return nil
}

// Remove unregisters a client and closes its event queue. Safe to call twice.
func (cs *Clients) Remove(id string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if c, ok := cs.clients[id]; ok {
		delete(cs.clients, id)
		close(c.Events)
	}
}

// Len returns the number of registered clients.
func (cs *Clients) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.clients)
}

// Send enqueues ev for connID without blocking.
func (cs *Clients) Send(connID string, ev *Event) error {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	c, ok := cs.clients[connID]
	if !ok {
		return fmt.Errorf("%w: %s not registered", ErrTransport, connID)
	}
	select {
	case c.Events <- ev:
		return nil
	default:
		return fmt.Errorf("%w: %s queue full", ErrTransport, connID)
	}
}
