// internal/protocol/payloads.go

package protocol

import (
	"time"
)

// SendMessagePayload is the outbound body for a direct message. The
// temp id travels with the payload so the server can echo it back and
// the client can collapse the optimistic entry deterministically.
type SendMessagePayload struct {
	TempID     string `json:"tempId" validate:"required"`
	SenderID   string `json:"senderId" validate:"required"`
	ReceiverID string `json:"receiverId" validate:"required"`
	Text       string `json:"text"`
	FileURL    string `json:"fileUrl,omitempty" validate:"omitempty,url"`
	FileName   string `json:"fileName,omitempty"`
	FileType   string `json:"fileType,omitempty"`
}

// SendGroupMessagePayload is the outbound body for a group message.
type SendGroupMessagePayload struct {
	TempID   string `json:"tempId" validate:"required"`
	GroupID  string `json:"groupId" validate:"required"`
	SenderID string `json:"senderId" validate:"required"`
	Text     string `json:"text"`
	FileURL  string `json:"fileUrl,omitempty" validate:"omitempty,url"`
	FileName string `json:"fileName,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

// MessageReadPayload notifies the server that the viewer read a direct
// message they received.
type MessageReadPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	ReadBy    string `json:"readBy" validate:"required"`
	SenderID  string `json:"senderId" validate:"required"`
}

// GroupMessageReadPayload notifies the server that a member read a
// group message.
type GroupMessageReadPayload struct {
	MessageID string `json:"messageId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	GroupID   string `json:"groupId" validate:"required"`
}

// GroupPayload carries a bare group id (join_group / leave_group).
type GroupPayload struct {
	GroupID string `json:"groupId" validate:"required"`
}

// WireReadEntry is one member's read record on a group message.
type WireReadEntry struct {
	UserID string    `json:"user"`
	ReadAt time.Time `json:"readAt"`
}

// WireMessage is the server's canonical message representation, shared
// by receive_message, receive_group_message and the history endpoints.
type WireMessage struct {
	ID         string          `json:"_id"`
	TempID     string          `json:"tempId,omitempty"`
	SenderID   string          `json:"senderId"`
	ReceiverID string          `json:"receiverId,omitempty"`
	GroupID    string          `json:"groupId,omitempty"`
	Text       string          `json:"text"`
	FileURL    string          `json:"fileUrl,omitempty"`
	FileName   string          `json:"fileName,omitempty"`
	FileType   string          `json:"fileType,omitempty"`
	Status     string          `json:"status,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	ReadAt     *time.Time      `json:"readAt,omitempty"`
	ReadBy     []WireReadEntry `json:"readBy,omitempty"`
}

// ReceiveMessagePayload wraps an inbound message event.
type ReceiveMessagePayload struct {
	Message WireMessage `json:"message"`
}

// MessageStatusUpdatePayload carries a delivery/read transition for a
// direct message. TempID is set when the update doubles as the send
// acknowledgement, so the dispatcher can retire the temp entry.
type MessageStatusUpdatePayload struct {
	MessageID string     `json:"messageId"`
	TempID    string     `json:"tempId,omitempty"`
	Status    string     `json:"status"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// GroupMessageStatusUpdatePayload carries the server's view of a group
// message's readers.
type GroupMessageStatusUpdatePayload struct {
	MessageID string          `json:"messageId"`
	GroupID   string          `json:"groupId"`
	ReadBy    []WireReadEntry `json:"readBy"`
}

// UserStatusPayload is a single presence record, used both inside the
// users_status_update snapshot and as the user_status_change delta.
type UserStatusPayload struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// MessageErrorPayload is the server's rejection of a send.
type MessageErrorPayload struct {
	TempID string `json:"tempId,omitempty"`
	Error  string `json:"error"`
}
