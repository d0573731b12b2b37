package core

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

// JoinMode decides whether joining a room keeps earlier memberships.
type JoinMode int

const (
	// JoinAccumulate keeps every room a connection has joined.
	JoinAccumulate JoinMode = iota
	// JoinReplace releases the previous room before joining the new one.
	JoinReplace
)

// ParseJoinMode maps a config string to a JoinMode. Unknown values accumulate.
func ParseJoinMode(s string) JoinMode {
	if strings.EqualFold(strings.TrimSpace(s), "replace") {
		return JoinReplace
	}
	return JoinAccumulate
}

// GatewayOptions tunes the gateway.
type GatewayOptions struct {
	JoinMode        JoinMode
	HistoryLimit    int
	MaxHistoryLimit int
	PersistTimeout  time.Duration
}

// DefaultGatewayOptions mirrors config.Default.
func DefaultGatewayOptions() GatewayOptions {
	return GatewayOptions{
		JoinMode:        JoinAccumulate,
		HistoryLimit:    store.DefaultHistoryLimit,
		MaxHistoryLimit: 200,
		PersistTimeout:  5 * time.Second,
	}
}

// SendRequest is the payload of send_message.
type SendRequest struct {
	Author  string `validate:"required"`
	Content string `validate:"required"`
	Room    string `validate:"required"`
}

// Gateway routes connection events to sessions, the registry, the store and the dispatcher.
type Gateway struct {
	registry   *Registry
	store      store.MessageStore
	transport  Transport
	dispatcher *Dispatcher
	opts       GatewayOptions
	validate   *validator.Validate
	roomLocks  *roomLocks
	log        *zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewGateway constructs a gateway. The registry is owned by the caller.
func NewGateway(registry *Registry, st store.MessageStore, transport Transport, opts GatewayOptions, logger *zerolog.Logger) *Gateway {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	defaults := DefaultGatewayOptions()
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaults.HistoryLimit
	}
	if opts.MaxHistoryLimit < opts.HistoryLimit {
		opts.MaxHistoryLimit = opts.HistoryLimit
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaults.PersistTimeout
	}

	return &Gateway{
		registry:   registry,
		store:      st,
		transport:  transport,
		dispatcher: NewDispatcher(registry, transport, logger),
		opts:       opts,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		roomLocks:  newRoomLocks(),
		log:        logger,
		sessions:   make(map[string]*Session),
	}
}

// Connect opens a session for connID in the Connected state.
func (g *Gateway) Connect(connID string) (*Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, ErrGatewayClosed
	}
	if _, exists := g.sessions[connID]; exists {
		return nil, ErrDuplicateConn
	}
	s := newSession(connID)
	g.sessions[connID] = s
	g.log.Debug().Str("conn_id", connID).Msg("session opened")
	return s, nil
}

// Session returns the live session for connID.
func (g *Gateway) Session(connID string) (*Session, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[connID]
	return s, ok
}

// OnJoinRoom subscribes connID to room. An empty room is rejected with InvalidArgument.
func (g *Gateway) OnJoinRoom(_ context.Context, connID, room string) error {
	room = strings.TrimSpace(room)
	if err := g.validate.Var(room, "required"); err != nil {
		return g.reject(connID, invalidArgument("room is required"))
	}

	s, ok := g.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}

	if g.opts.JoinMode == JoinReplace {
		for _, prev := range g.registry.RoomsOf(connID) {
			if prev != room {
				g.registry.Leave(prev, connID)
			}
		}
	}

	added := g.registry.Join(room, connID)
	if !s.markJoined(room, g.opts.JoinMode == JoinReplace) {
		// disconnected while joining
		g.registry.Leave(room, connID)
		return ErrUnknownConnection
	}

	g.log.Info().Str("conn_id", connID).Str("room", room).Bool("new_member", added).Msg("joined room")
	return nil
}

// OnLeaveRoom unsubscribes connID from room.
func (g *Gateway) OnLeaveRoom(_ context.Context, connID, room string) error {
	room = strings.TrimSpace(room)
	if err := g.validate.Var(room, "required"); err != nil {
		return g.reject(connID, invalidArgument("room is required"))
	}

	s, ok := g.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}

	if g.registry.Leave(room, connID) {
		s.markLeft(room)
		g.log.Info().Str("conn_id", connID).Str("room", room).Msg("left room")
	}
	return nil
}

// OnSendMessage validates, persists and then broadcasts a message.
// Validation and persistence errors go to the sender only; nothing is broadcast.
// A message accepted by the store is broadcast even if the sender disconnects meanwhile.
func (g *Gateway) OnSendMessage(ctx context.Context, connID string, req SendRequest) error {
	if s, ok := g.Session(connID); !ok || s.State() == StateDisconnected {
		return ErrUnknownConnection
	}

	normalized := SendRequest{
		Author:  strings.TrimSpace(req.Author),
		Content: strings.TrimSpace(req.Content),
		Room:    strings.TrimSpace(req.Room),
	}
	if err := g.validate.Struct(normalized); err != nil {
		return g.reject(connID, invalidArgument(describeValidation(err)))
	}

	unlock := g.roomLocks.lock(normalized.Room)
	defer unlock()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.opts.PersistTimeout)
	defer cancel()

	record := &store.Message{
		Room:    normalized.Room,
		Author:  normalized.Author,
		Content: req.Content,
	}
	if err := g.store.AppendMessage(persistCtx, record); err != nil {
		g.log.Error().Err(err).Str("conn_id", connID).Str("room", normalized.Room).Msg("failed to persist message")
		return g.reject(connID, persistenceFailure("failed to save message", err))
	}

	delivered := g.dispatcher.Dispatch(record.Room, messageFromStore(record))
	g.log.Debug().
		Str("conn_id", connID).
		Str("room", record.Room).
		Int64("message_id", record.ID).
		Int("delivered", delivered).
		Msg("message broadcast")
	return nil
}

// OnDisconnect tears the session down and removes every membership. Idempotent.
func (g *Gateway) OnDisconnect(connID string) {
	g.mu.Lock()
	s, ok := g.sessions[connID]
	delete(g.sessions, connID)
	g.mu.Unlock()

	left := g.registry.LeaveAll(connID)
	if ok && s.markDisconnected() {
		g.log.Debug().Str("conn_id", connID).Strs("rooms", left).Msg("session closed")
	}
}

// History returns up to limit messages of room, newest first, as the store orders them.
// limit <= 0 selects the configured default; larger values are capped.
func (g *Gateway) History(ctx context.Context, room string, limit int) ([]Message, error) {
	room = strings.TrimSpace(room)
	if room == "" {
		return nil, invalidArgument("room is required")
	}

	records, err := g.store.ListMessages(ctx, room, g.clampLimit(limit))
	if err != nil {
		g.log.Error().Err(err).Str("room", room).Msg("failed to load history")
		return nil, persistenceFailure("failed to load messages", err)
	}

	out := make([]Message, 0, len(records))
	for _, rec := range records {
		out = append(out, messageFromStore(rec))
	}
	return out, nil
}

// FetchHistory returns the most recent messages of room in chronological order.
// It does not depend on session or membership state.
func (g *Gateway) FetchHistory(ctx context.Context, room string, limit int) ([]Message, error) {
	msgs, err := g.History(ctx, room, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// Close disconnects every session and clears the registry. Later Connect calls fail.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	for _, id := range ids {
		g.OnDisconnect(id)
	}
	g.registry.Reset()
}

// SessionCount returns the number of live sessions.
func (g *Gateway) SessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *Gateway) clampLimit(limit int) int {
	if limit <= 0 {
		return g.opts.HistoryLimit
	}
	return min(limit, g.opts.MaxHistoryLimit)
}

// reject notifies the sender and returns err.
func (g *Gateway) reject(connID string, err *CoreError) error {
	if sendErr := g.transport.Send(connID, errorEvent(err)); sendErr != nil {
		g.log.Debug().Err(sendErr).Str("conn_id", connID).Str("code", err.Code).Msg("error notification not delivered")
	}
	return err
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return strings.Join(fields, ", ") + " must not be empty"
}
