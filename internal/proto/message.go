package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinRoom    = "join_room"
	InboundTypeLeaveRoom   = "leave_room"
	InboundTypeSendMessage = "send_message"

	OutboundTypeReceiveMessage = "receive_message"
	OutboundTypeError          = "error"
)

// JoinRoomData requests to join (or leave) a specific room.
type JoinRoomData struct {
	Room string `json:"room"`
}

// SendMessageData is a chat message from the client.
type SendMessageData struct {
	Author  string `json:"author"`
	Content string `json:"content"`
	Room    string `json:"room"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessagePayload is a persisted message as the client sees it, both in
// receive_message events and in the history endpoint.
type MessagePayload struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Room      string `json:"room"`
	CreatedAt string `json:"createdAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// InboundFrame is the client-side counterpart of Outbound with the payload left raw.
type InboundFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}
