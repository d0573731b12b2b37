package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/proto"
)

// ErrNotConnected is returned when a write is attempted without a live connection.
var ErrNotConnected = errors.New("not connected")

// Options configure a chat client.
type Options struct {
	// ServerURL is the HTTP base address, e.g. http://localhost:8080.
	ServerURL  string
	Author     string
	Policy     Policy
	HTTPClient *http.Client
	// Buffer sizes the Messages and Errors channels.
	Buffer int
}

// Client talks to a chat server over WebSocket and HTTP. The joined room is
// remembered and re-joined after a reconnect.
type Client struct {
	opts        Options
	base        *url.URL
	log         *zerolog.Logger
	reconnector *Reconnector

	mu     sync.Mutex
	conn   *websocket.Conn
	room   string
	closed bool

	messages chan proto.MessagePayload
	errs     chan proto.Error
}

// New validates opts and returns an unconnected client.
func New(opts Options, logger *zerolog.Logger) (*Client, error) {
	base, err := url.Parse(opts.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", opts.ServerURL)
	}
	if strings.TrimSpace(opts.Author) == "" {
		return nil, errors.New("author is required")
	}
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 32
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		opts:        opts,
		base:        base,
		log:         logger,
		reconnector: NewReconnector(opts.Policy),
		messages:    make(chan proto.MessagePayload, opts.Buffer),
		errs:        make(chan proto.Error, opts.Buffer),
	}, nil
}

// Messages delivers receive_message events. It is closed when Run returns.
func (c *Client) Messages() <-chan proto.MessagePayload { return c.messages }

// Errors delivers error events. It is closed when Run returns.
func (c *Client) Errors() <-chan proto.Error { return c.errs }

// State reports the reconnection state.
func (c *Client) State() State { return c.reconnector.State() }

// Connect dials the server under the reconnection policy.
// It returns net.ErrClosed once Close has been called.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return net.ErrClosed
	}
	return c.reconnector.Connect(ctx, c.dial)
}

// Join sets the current room and asks the server to join it.
func (c *Client) Join(ctx context.Context, room string) error {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
	return c.write(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: room})
}

// Leave leaves room. The client stops re-joining it after reconnects.
func (c *Client) Leave(ctx context.Context, room string) error {
	c.mu.Lock()
	if c.room == room {
		c.room = ""
	}
	c.mu.Unlock()
	return c.write(ctx, proto.InboundTypeLeaveRoom, proto.JoinRoomData{Room: room})
}

// Send posts content to the current room.
func (c *Client) Send(ctx context.Context, content string) error {
	c.mu.Lock()
	room := c.room
	c.mu.Unlock()
	return c.write(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{
		Author:  c.opts.Author,
		Content: content,
		Room:    room,
	})
}

// Run reads server events until ctx is done, Close is called or reconnection fails.
// After Close it returns nil.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.messages)
	defer close(c.errs)

	for {
		if c.isClosed() {
			return nil
		}
		conn := c.current()
		if conn == nil {
			if err := c.Connect(ctx); err != nil {
				if c.isClosed() {
					return nil
				}
				return err
			}
			continue
		}

		err := c.readLoop(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.isClosed() {
			return nil
		}
		c.log.Warn().Err(err).Msg("connection lost, reconnecting")
		c.drop(conn)
		if err := c.Connect(ctx); err != nil {
			if c.isClosed() {
				return nil
			}
			return err
		}
	}
}

// Close closes the current connection and stops Run from reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close(websocket.StatusNormalClosure, "bye")
}

// FetchHistory loads up to limit messages of room in chronological order.
// A limit of zero uses the server default.
func (c *Client) FetchHistory(ctx context.Context, room string, limit int) ([]proto.MessagePayload, error) {
	u := c.base.JoinPath("api", "messages", room)
	if limit > 0 {
		u.RawQuery = url.Values{"limit": []string{strconv.Itoa(limit)}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("fetch history: status %d: %s", resp.StatusCode, body.Error)
	}

	var messages []proto.MessagePayload
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	// server returns newest first
	slices.Reverse(messages)
	return messages, nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.CloseNow()
		return net.ErrClosed
	}
	c.conn = conn
	room := c.room
	c.mu.Unlock()

	if room != "" {
		if err := c.write(ctx, proto.InboundTypeJoinRoom, proto.JoinRoomData{Room: room}); err != nil {
			c.drop(conn)
			return fmt.Errorf("rejoin %s: %w", room, err)
		}
	}
	c.log.Debug().Str("room", room).Msg("connected")
	return nil
}

func (c *Client) wsURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.JoinPath("ws").String()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var frame proto.InboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		switch frame.Type {
		case proto.OutboundTypeReceiveMessage:
			var msg proto.MessagePayload
			if err := json.Unmarshal(frame.Data, &msg); err != nil {
				c.log.Warn().Err(err).Msg("bad receive_message payload")
				continue
			}
			select {
			case c.messages <- msg:
			case <-ctx.Done():
				return ctx.Err()
			}
		case proto.OutboundTypeError:
			if frame.Error == nil {
				continue
			}
			select {
			case c.errs <- *frame.Error:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			c.log.Debug().Str("type", frame.Type).Msg("ignoring frame")
		}
	}
}

func (c *Client) write(ctx context.Context, typ string, data any) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.CloseNow()
}
