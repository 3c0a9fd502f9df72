// internal/protocol/events.go

package protocol

import (
	"encoding/json"
	"fmt"
)

// Event names carried on the socket. Outbound events are emitted by the
// client, inbound events are pushed by the server. The connect family
// is synthesized locally by the connection manager so subscribers can
// observe lifecycle changes through the same bus as protocol traffic.
const (
	// Outbound
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventSendMessage      = "send_message"
	EventSendGroupMessage = "send_group_message"
	EventMessageRead      = "message_read"
	EventGroupMessageRead = "group_message_read"
	EventJoinGroup        = "join_group"
	EventLeaveGroup       = "leave_group"

	// Inbound
	EventReceiveMessage           = "receive_message"
	EventReceiveGroupMessage      = "receive_group_message"
	EventMessageStatusUpdate      = "message_status_update"
	EventGroupMessageStatusUpdate = "group_message_status_update"
	EventUsersStatusUpdate        = "users_status_update"
	EventUserStatusChange         = "user_status_change"
	EventMessageError             = "message_error"

	// Lifecycle (local)
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

// Envelope is the framing for every message on the wire.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload for sending.
func NewEnvelope(event string, payload interface{}) (*Envelope, error) {
	env := &Envelope{Event: event}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
		}
		env.Data = data
	}

	return env, nil
}

// Decode unmarshals the envelope data into dst.
func (e *Envelope) Decode(dst interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no data", e.Event)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Event, err)
	}
	return nil
}
