package hub

import (
	"encoding/json"
	"fmt"

	"github.com/AhmedEhabH/Come2Chat/pkg/state"
	"github.com/tidwall/gjson"
)

// Client-invoked events.
const (
	EventAddUserConnectionID   = "AddUserConnectionId"
	EventSendPublicMessage     = "SendPublicMessage"
	EventCreatePrivateChat     = "CreatePrivateChat"
	EventReceivePrivateMessage = "ReceivePrivateMessage"
	EventRemovePrivateChat     = "RemovePrivateChat"
)

// Server-pushed events.
const (
	EventUserConnected     = "UserConnected"
	EventOnlineUsers       = "OnlineUsers"
	EventNewMessage        = "NewMessage"
	EventOpenPrivateChat   = "OpenPrivateChat"
	EventNewPrivateMessage = "NewPrivateMessage"
	EventClosePrivateChat  = "ClosePrivateChat"
)

// ClientMessage is the envelope used in both directions on the wire.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func marshalEvent(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		raw = b
	}
	b, err := json.Marshal(ClientMessage{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s envelope: %w", event, err)
	}
	return b, nil
}

// messageFromPayload pulls the chat message fields out of an inbound payload.
func messageFromPayload(payload gjson.Result) state.Message {
	return state.Message{
		From:    payload.Get("from").String(),
		To:      payload.Get("to").String(),
		Content: payload.Get("content").String(),
	}
}

// nameFromPayload accepts either a bare JSON string or a {"name": ...}
// object, matching what hub clients historically sent.
func nameFromPayload(payload gjson.Result) string {
	if payload.Type == gjson.String {
		return payload.String()
	}
	return payload.Get("name").String()
}
