package http

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

// handleInbound routes one client frame to the gateway. Domain errors have
// already been reported to the sender by the gateway; only errors that should
// end the connection are returned.
func (h *WSHandler) handleInbound(ctx context.Context, connID string, inbound proto.Inbound, limiter *rateLimiter) error {
	var err error

	switch inbound.Type {
	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom:
		var data proto.JoinRoomData
		if decodeErr := json.Unmarshal(inbound.Data, &data); decodeErr != nil {
			h.notify(connID, core.ErrCodeBadRequest, "malformed room payload")
			return nil
		}
		if inbound.Type == proto.InboundTypeJoinRoom {
			err = h.gateway.OnJoinRoom(ctx, connID, data.Room)
		} else {
			err = h.gateway.OnLeaveRoom(ctx, connID, data.Room)
		}
	case proto.InboundTypeSendMessage:
		if !limiter.allow() {
			h.notify(connID, core.ErrCodeRateLimited, "too many messages")
			return nil
		}
		var data proto.SendMessageData
		if decodeErr := json.Unmarshal(inbound.Data, &data); decodeErr != nil {
			h.notify(connID, core.ErrCodeBadRequest, "malformed message payload")
			return nil
		}
		err = h.gateway.OnSendMessage(ctx, connID, core.SendRequest{
			Author:  data.Author,
			Content: data.Content,
			Room:    data.Room,
		})
	default:
		h.notify(connID, core.ErrCodeBadRequest, "unknown message type")
		return nil
	}

	if errors.Is(err, core.ErrUnknownConnection) {
		return err
	}
	if err != nil {
		h.log.Debug().Err(err).Str("conn_id", connID).Str("type", inbound.Type).Msg("inbound rejected")
	}
	return nil
}

// notify queues a transport-level error for one connection.
func (h *WSHandler) notify(connID, code, msg string) {
	ev := &core.Event{Kind: core.EventError, Error: core.NewCoreError(code, msg)}
	if err := h.clients.Send(connID, ev); err != nil {
		h.log.Debug().Err(err).Str("conn_id", connID).Msg("error notification dropped")
	}
}

func messagePayload(msg core.Message) proto.MessagePayload {
	return proto.MessagePayload{
		ID:        msg.ID,
		Author:    msg.Author,
		Content:   msg.Content,
		Room:      msg.Room,
		CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeReceiveMessage,
			Data: messagePayload(event.Message),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unsupported event"}}
	}
}
