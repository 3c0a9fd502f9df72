// internal/store/message.go

package store

import (
	"fmt"
	"strings"
	"time"
)

// Status is the delivery state of a direct message. Transitions are
// strictly forward: Sent < Delivered < Read.
type Status int

const (
	StatusSent Status = iota + 1
	StatusDelivered
	StatusRead
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusDelivered:
		return "delivered"
	case StatusRead:
		return "read"
	default:
		return "unknown"
	}
}

// ParseStatus maps the wire representation to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "sent":
		return StatusSent, nil
	case "delivered":
		return StatusDelivered, nil
	case "read":
		return StatusRead, nil
	default:
		return 0, fmt.Errorf("unknown message status %q", s)
	}
}

// Attachment describes an uploaded file attached to a message. It is
// only present once the upload has completed.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
}

// ReadEntry records that a group member read a message.
type ReadEntry struct {
	UserID string
	ReadAt time.Time
}

// Message is one entry in the conversation store. Direct messages set
// RecipientID and Status; group messages set GroupID and ReadBy.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	GroupID        string
	Text           string
	Attachment     *Attachment
	Status         Status
	Timestamp      time.Time
	ReadAt         *time.Time
	ReadBy         []ReadEntry
}

// IsGroup reports whether the message belongs to a group conversation.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// ReadByUser reports whether userID already appears in ReadBy.
func (m *Message) ReadByUser(userID string) bool {
	for _, e := range m.ReadBy {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// Clone returns a shallow copy safe to hand to readers.
func (m *Message) Clone() *Message {
	cp := *m
	if m.ReadBy != nil {
		cp.ReadBy = make([]ReadEntry, len(m.ReadBy))
		copy(cp.ReadBy, m.ReadBy)
	}
	return &cp
}
