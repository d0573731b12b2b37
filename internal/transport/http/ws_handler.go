package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/utils"
)

// WSOptions tunes per-connection limits.
type WSOptions struct {
	ClientBuffer      int
	MaxMessageBytes   int64
	MessagesPerMinute int
}

// WSHandler upgrades HTTP connections and bridges them to the gateway.
// Each connection's inbound frames are handled sequentially by its read loop.
type WSHandler struct {
	gateway *core.Gateway
	clients *core.Clients
	opts    WSOptions
	log     *zerolog.Logger

	// base is canceled on server shutdown to release hijacked connections.
	base     context.Context
	shutdown context.CancelFunc
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(gateway *core.Gateway, clients *core.Clients, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	base, cancel := context.WithCancel(context.Background())
	return &WSHandler{
		gateway:  gateway,
		clients:  clients,
		opts:     opts,
		log:      logger,
		base:     base,
		shutdown: cancel,
	}
}

// Shutdown ends every open WebSocket connection.
func (h *WSHandler) Shutdown() {
	h.shutdown()
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.opts.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.opts.ClientBuffer)
	if err := h.clients.Add(client); err != nil {
		h.log.Error().Err(err).Msg("register client")
		return
	}
	if _, err := h.gateway.Connect(client.ID); err != nil {
		h.clients.Remove(client.ID)
		conn.Close(websocket.StatusTryAgainLater, "server unavailable")
		return
	}
	defer func() {
		h.gateway.OnDisconnect(client.ID)
		h.clients.Remove(client.ID)
		h.log.Info().Str("conn_id", client.ID).Msg("connection closed")
	}()
	h.log.Info().Str("conn_id", client.ID).Str("remote", r.RemoteAddr).Msg("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.base, cancel)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if h.base.Err() != nil {
		status = websocket.StatusGoingAway
		reason = "server shutting down"
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.opts.MessagesPerMinute)
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("conn_id", client.ID).Msg("read ws inbound")
			return err
		}

		if err := h.handleInbound(ctx, client.ID, inbound, limiter); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("conn_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
