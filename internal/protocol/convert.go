// internal/protocol/convert.go

package protocol

import (
	"github.com/openwave/chatsync/internal/store"
)

// ToMessage converts a wire message into a store entry. The
// conversation id is owned by the caller, which knows whether the
// message was loaded for a peer or a group view.
func (m WireMessage) ToMessage() *store.Message {
	msg := &store.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.ReceiverID,
		GroupID:     m.GroupID,
		Text:        m.Text,
		Timestamp:   m.Timestamp,
		ReadAt:      m.ReadAt,
	}

	if m.FileURL != "" {
		msg.Attachment = &store.Attachment{
			URL:      m.FileURL,
			Name:     m.FileName,
			MimeType: m.FileType,
		}
	}

	if m.GroupID == "" {
		status, err := store.ParseStatus(m.Status)
		if err != nil {
			status = store.StatusSent
		}
		msg.Status = status
	}

	for _, e := range m.ReadBy {
		msg.ReadBy = append(msg.ReadBy, store.ReadEntry{UserID: e.UserID, ReadAt: e.ReadAt})
	}

	return msg
}
