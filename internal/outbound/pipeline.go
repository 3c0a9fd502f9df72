// internal/outbound/pipeline.go

package outbound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openwave/chatsync/internal/connection"
	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/session"
	"github.com/openwave/chatsync/internal/store"
	"github.com/openwave/chatsync/internal/upload"
)

var (
	// ErrEmptyMessage rejects a compose with neither text nor
	// attachment.
	ErrEmptyMessage = errors.New("message requires text or an attachment")

	// ErrAttachmentUpload aborts the whole send; no optimistic entry is
	// ever created for a message whose attachment never made it up.
	ErrAttachmentUpload = errors.New("attachment upload failed")
)

// Emitter is the slice of the connection manager the pipeline needs.
type Emitter interface {
	Connected() bool
	Emit(event string, payload interface{}) error
}

// Attachment is a file the user picked for the message being composed.
type Attachment struct {
	Content  io.Reader
	Name     string
	MimeType string
}

// Pipeline turns a compose action into an optimistic store entry plus a
// protocol send. Confirmation arrives asynchronously through the
// dispatcher, which retires the temp id via the registry.
type Pipeline struct {
	sess     session.Session
	emitter  Emitter
	store    *store.Store
	uploader upload.Uploader
	registry *PendingSendRegistry
	validate *validator.Validate

	// Injection points for tests.
	now       func() time.Time
	newTempID func() string
}

func NewPipeline(sess session.Session, emitter Emitter, st *store.Store, uploader upload.Uploader, registry *PendingSendRegistry) *Pipeline {
	return &Pipeline{
		sess:      sess,
		emitter:   emitter,
		store:     st,
		uploader:  uploader,
		registry:  registry,
		validate:  validator.New(),
		now:       time.Now,
		newTempID: func() string { return "temp-" + uuid.NewString() },
	}
}

// Compose sends a direct message to recipientID. It fails fast with
// connection.ErrUnavailable while offline, before any store mutation,
// so going offline never leaves ghost messages behind.
func (p *Pipeline) Compose(ctx context.Context, recipientID, text string, att *Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return ErrEmptyMessage
	}
	if !p.emitter.Connected() {
		return connection.ErrUnavailable
	}

	uploaded, err := p.uploadAttachment(ctx, att)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// Conversation switched away while the upload was in flight;
		// the result is discarded.
		return err
	}

	tempID := p.newTempID()
	msg := &store.Message{
		ID:             tempID,
		ConversationID: recipientID,
		SenderID:       p.sess.UserID,
		RecipientID:    recipientID,
		Text:           text,
		Status:         store.StatusSent,
		Timestamp:      p.now(),
	}
	payload := protocol.SendMessagePayload{
		TempID:     tempID,
		SenderID:   p.sess.UserID,
		ReceiverID: recipientID,
		Text:       text,
	}
	if uploaded != nil {
		msg.Attachment = &store.Attachment{
			URL:      uploaded.FileURL,
			Name:     uploaded.FileName,
			MimeType: uploaded.FileType,
		}
		payload.FileURL = uploaded.FileURL
		payload.FileName = uploaded.FileName
		payload.FileType = uploaded.FileType
	}

	if err := p.validate.Struct(payload); err != nil {
		return fmt.Errorf("invalid send payload: %w", err)
	}

	return p.dispatch(msg, protocol.EventSendMessage, payload, PendingSend{
		TempID:         tempID,
		ConversationID: recipientID,
		SentAt:         msg.Timestamp,
	})
}

// ComposeGroup sends a message to a group conversation.
func (p *Pipeline) ComposeGroup(ctx context.Context, groupID, text string, att *Attachment) error {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return ErrEmptyMessage
	}
	if !p.emitter.Connected() {
		return connection.ErrUnavailable
	}

	uploaded, err := p.uploadAttachment(ctx, att)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tempID := p.newTempID()
	msg := &store.Message{
		ID:             tempID,
		ConversationID: groupID,
		SenderID:       p.sess.UserID,
		GroupID:        groupID,
		Text:           text,
		Timestamp:      p.now(),
	}
	payload := protocol.SendGroupMessagePayload{
		TempID:   tempID,
		GroupID:  groupID,
		SenderID: p.sess.UserID,
		Text:     text,
	}
	if uploaded != nil {
		msg.Attachment = &store.Attachment{
			URL:      uploaded.FileURL,
			Name:     uploaded.FileName,
			MimeType: uploaded.FileType,
		}
		payload.FileURL = uploaded.FileURL
		payload.FileName = uploaded.FileName
		payload.FileType = uploaded.FileType
	}

	if err := p.validate.Struct(payload); err != nil {
		return fmt.Errorf("invalid send payload: %w", err)
	}

	return p.dispatch(msg, protocol.EventSendGroupMessage, payload, PendingSend{
		TempID:         tempID,
		ConversationID: groupID,
		Group:          true,
		SentAt:         msg.Timestamp,
	})
}

// dispatch appends the optimistic entry, registers the pending send and
// emits. An emit failure rolls both back and surfaces the error.
func (p *Pipeline) dispatch(msg *store.Message, event string, payload interface{}, pending PendingSend) error {
	p.store.Append(msg)
	p.registry.Register(pending)

	if err := p.emitter.Emit(event, payload); err != nil {
		p.store.Remove(msg.ID)
		p.registry.Remove(msg.ID)
		return err
	}
	return nil
}

func (p *Pipeline) uploadAttachment(ctx context.Context, att *Attachment) (*upload.Result, error) {
	if att == nil {
		return nil, nil
	}

	contentType := att.MimeType
	if contentType == "" {
		contentType = mimeTypeFor(att.Name)
	}

	result, err := p.uploader.Upload(ctx, att.Content, att.Name, contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAttachmentUpload, err)
	}
	return result, nil
}

// mimeTypeFor guesses a content type from the file extension when the
// picker did not supply one.
func mimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".mp4":
		return "video/mp4"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
