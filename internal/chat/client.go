// internal/chat/client.go

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/openwave/chatsync/internal/connection"
	"github.com/openwave/chatsync/internal/outbound"
	"github.com/openwave/chatsync/internal/presence"
	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/readtrack"
	"github.com/openwave/chatsync/internal/session"
	"github.com/openwave/chatsync/internal/store"
	"github.com/openwave/chatsync/internal/upload"
)

var (
	ErrNoActiveConversation = errors.New("no active conversation")

	// ErrSendRejected wraps a server-side message_error. The optimistic
	// entry is left in place for the view layer to flag; the engine
	// does not auto-retry.
	ErrSendRejected = errors.New("message rejected by server")
)

// Conn is the slice of the connection manager the engine depends on.
type Conn interface {
	Connected() bool
	Emit(event string, payload interface{}) error
	Subscribe(event string, h connection.Handler) *connection.Subscription
}

// History seeds the store when a conversation is opened.
type History interface {
	Messages(ctx context.Context, peerID string) ([]*store.Message, error)
	GroupMessages(ctx context.Context, groupID string) ([]*store.Message, error)
}

// Client is the messaging synchronization engine. It composes the
// session, connection, store, presence tracker, outbound pipeline and
// read tracker, and routes every inbound event to the right mutation.
// The conversation-view layer only reads Messages/OnlineUsers and calls
// Send/MarkVisible.
type Client struct {
	sess    session.Session
	conn    Conn
	history History

	store    *store.Store
	presence *presence.Tracker
	registry *outbound.PendingSendRegistry
	pipeline *outbound.Pipeline
	reads    *readtrack.Tracker

	mu             sync.Mutex
	conversationID string
	group          bool
	convCtx        context.Context
	convCancel     context.CancelFunc
	connectedOnce  bool

	errs chan error
	subs []*connection.Subscription
}

// New builds the engine. Call Start to begin dispatching and Close to
// release every subscription.
func New(sess session.Session, conn Conn, history History, uploader upload.Uploader) *Client {
	st := store.NewStore()
	registry := outbound.NewPendingSendRegistry()

	c := &Client{
		sess:     sess,
		conn:     conn,
		history:  history,
		store:    st,
		presence: presence.NewTracker(),
		registry: registry,
		pipeline: outbound.NewPipeline(sess, conn, st, uploader, registry),
		reads:    readtrack.NewTracker(sess, conn, st),
		errs:     make(chan error, 16),
	}
	c.convCtx, c.convCancel = context.WithCancel(context.Background())
	return c
}

// Start subscribes the dispatcher to every inbound event.
func (c *Client) Start() {
	type route struct {
		event   string
		handler connection.Handler
	}
	for _, r := range []route{
		{protocol.EventReceiveMessage, c.onReceiveMessage},
		{protocol.EventReceiveGroupMessage, c.onReceiveGroupMessage},
		{protocol.EventMessageStatusUpdate, c.onStatusUpdate},
		{protocol.EventGroupMessageStatusUpdate, c.onGroupStatusUpdate},
		{protocol.EventUsersStatusUpdate, c.onPresenceSnapshot},
		{protocol.EventUserStatusChange, c.onPresenceDelta},
		{protocol.EventMessageError, c.onMessageError},
		{protocol.EventConnect, c.onConnect},
		{protocol.EventDisconnect, c.onDisconnect},
		{protocol.EventConnectError, c.onConnectError},
	} {
		c.subs = append(c.subs, c.conn.Subscribe(r.event, r.handler))
	}
}

// Close releases every subscription and cancels conversation-scoped
// work.
func (c *Client) Close() {
	for _, s := range c.subs {
		s.Close()
	}
	c.subs = nil
	c.convCancel()
}

// Errors delivers non-fatal engine errors (send rejections, exhausted
// reconnects). The channel is buffered; when the consumer lags, new
// errors are logged and dropped so dispatch never blocks.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Messages returns the ordered messages of the active conversation.
func (c *Client) Messages() []*store.Message {
	return c.store.Messages()
}

// OnlineUsers returns the ids of peers currently online.
func (c *Client) OnlineUsers() []string {
	return c.presence.Online()
}

// IsOnline reports whether a peer is online.
func (c *Client) IsOnline(userID string) bool {
	return c.presence.IsOnline(userID)
}

// ActiveConversation returns the current conversation id and whether it
// is a group.
func (c *Client) ActiveConversation() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID, c.group
}

// OpenConversation makes peerID the active direct conversation: the
// store is rebuilt from history and any in-flight work tagged to the
// previous conversation is cancelled or ignored.
func (c *Client) OpenConversation(ctx context.Context, peerID string) error {
	c.switchTo(peerID, false)

	history, err := c.history.Messages(ctx, peerID)
	if err != nil {
		return err
	}
	c.seed(peerID, false, history)
	return nil
}

// OpenGroup makes groupID the active conversation and joins its room.
func (c *Client) OpenGroup(ctx context.Context, groupID string) error {
	prev, wasGroup := c.ActiveConversation()
	c.switchTo(groupID, true)

	if wasGroup && prev != "" && prev != groupID {
		if err := c.conn.Emit(protocol.EventLeaveGroup, protocol.GroupPayload{GroupID: prev}); err != nil {
			log.Printf("Failed to leave group %s: %v", prev, err)
		}
	}
	if err := c.conn.Emit(protocol.EventJoinGroup, protocol.GroupPayload{GroupID: groupID}); err != nil {
		log.Printf("Failed to join group %s: %v", groupID, err)
	}

	history, err := c.history.GroupMessages(ctx, groupID)
	if err != nil {
		return err
	}
	c.seed(groupID, true, history)
	return nil
}

// CloseConversation leaves the active conversation, clearing the store.
func (c *Client) CloseConversation() {
	id, wasGroup := c.ActiveConversation()
	if wasGroup && id != "" {
		if err := c.conn.Emit(protocol.EventLeaveGroup, protocol.GroupPayload{GroupID: id}); err != nil {
			log.Printf("Failed to leave group %s: %v", id, err)
		}
	}
	c.switchTo("", false)
}

// Send composes a message in the active conversation. The compose is
// scoped to the conversation: switching away cancels an in-flight
// attachment upload's effect.
func (c *Client) Send(text string, att *outbound.Attachment) error {
	c.mu.Lock()
	id, group, ctx := c.conversationID, c.group, c.convCtx
	c.mu.Unlock()

	if id == "" {
		return ErrNoActiveConversation
	}

	var err error
	if group {
		err = c.pipeline.ComposeGroup(ctx, id, text, att)
	} else {
		err = c.pipeline.Compose(ctx, id, text, att)
	}
	if err != nil {
		sendFailures.Inc()
		return err
	}

	if group {
		messagesSent.WithLabelValues("group").Inc()
	} else {
		messagesSent.WithLabelValues("direct").Inc()
	}
	return nil
}

// MarkVisible reports that the active conversation is on screen; every
// unread message visible to the viewer produces one read receipt.
func (c *Client) MarkVisible() {
	id, group := c.ActiveConversation()
	if id == "" {
		return
	}
	if group {
		c.reads.ObserveVisibleGroup(id, c.store.Messages())
	} else {
		c.reads.ObserveVisible(c.store.Messages())
	}
}

// switchTo retargets the engine at a new conversation. The previous
// conversation's context is cancelled so stale uploads and fetches are
// discarded rather than mutating the rebuilt store.
func (c *Client) switchTo(id string, group bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.convCancel()
	c.convCtx, c.convCancel = context.WithCancel(context.Background())
	c.conversationID = id
	c.group = group
	c.store.Clear()
	c.registry.Clear()
}

// seed loads history into the store, unless the conversation changed
// while the fetch was in flight.
func (c *Client) seed(id string, group bool, history []*store.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conversationID != id || c.group != group {
		return
	}
	for _, msg := range history {
		c.store.Append(msg)
	}
}

func (c *Client) onReceiveMessage(data json.RawMessage) {
	var payload protocol.ReceiveMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Error decoding receive_message: %v", err)
		return
	}
	wire := payload.Message

	// The store is scoped to the active conversation; messages for any
	// other conversation are dropped, not errors.
	peer := wire.SenderID
	if peer == c.sess.UserID {
		peer = wire.ReceiverID
	}
	active, group := c.ActiveConversation()
	if group || active != peer {
		return
	}

	msg := wire.ToMessage()
	msg.ConversationID = active

	if wire.TempID != "" {
		c.registry.Resolve(wire.TempID)
		c.store.ReplaceTemporary(wire.TempID, msg)
	} else {
		c.store.Append(msg)
	}
	messagesReceived.WithLabelValues("direct").Inc()
}

func (c *Client) onReceiveGroupMessage(data json.RawMessage) {
	var payload protocol.ReceiveMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Error decoding receive_group_message: %v", err)
		return
	}
	wire := payload.Message

	active, group := c.ActiveConversation()
	if !group || active != wire.GroupID {
		return
	}

	msg := wire.ToMessage()
	msg.ConversationID = active

	if wire.TempID != "" {
		c.registry.Resolve(wire.TempID)
		c.store.ReplaceTemporary(wire.TempID, msg)
	} else {
		c.store.Append(msg)
	}
	messagesReceived.WithLabelValues("group").Inc()
}

func (c *Client) onStatusUpdate(data json.RawMessage) {
	var payload protocol.MessageStatusUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Error decoding message_status_update: %v", err)
		return
	}

	// A status update doubling as the send ack carries the temp id;
	// retire the optimistic entry before applying the transition.
	if payload.TempID != "" {
		if _, ok := c.registry.Resolve(payload.TempID); ok {
			c.store.ReplaceTemporary(payload.TempID, &store.Message{ID: payload.MessageID})
		}
	}

	status, err := store.ParseStatus(payload.Status)
	if err != nil {
		log.Printf("Dropping status update for %s: %v", payload.MessageID, err)
		return
	}
	c.reads.ApplyStatusUpdate(payload.MessageID, status, payload.ReadAt)
}

func (c *Client) onGroupStatusUpdate(data json.RawMessage) {
	var payload protocol.GroupMessageStatusUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Error decoding group_message_status_update: %v", err)
		return
	}

	readers := make([]store.ReadEntry, 0, len(payload.ReadBy))
	for _, e := range payload.ReadBy {
		readers = append(readers, store.ReadEntry{UserID: e.UserID, ReadAt: e.ReadAt})
	}
	c.reads.ApplyGroupReadSet(payload.MessageID, readers)
}

func (c *Client) onPresenceSnapshot(data json.RawMessage) {
	var users []protocol.UserStatusPayload
	if err := json.Unmarshal(data, &users); err != nil {
		log.Printf("Error decoding users_status_update: %v", err)
		return
	}

	snapshot := make([]presence.Status, 0, len(users))
	for _, u := range users {
		snapshot = append(snapshot, presence.Status{UserID: u.UserID, Online: u.Online})
	}
	c.presence.ApplySnapshot(snapshot)
	onlineUsers.Set(float64(len(c.presence.Online())))
}

func (c *Client) onPresenceDelta(data json.RawMessage) {
	var u protocol.UserStatusPayload
	if err := json.Unmarshal(data, &u); err != nil {
		log.Printf("Error decoding user_status_change: %v", err)
		return
	}
	c.presence.ApplyDelta(u.UserID, u.Online)
	onlineUsers.Set(float64(len(c.presence.Online())))
}

func (c *Client) onMessageError(data json.RawMessage) {
	var payload protocol.MessageErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("Error decoding message_error: %v", err)
		return
	}

	// The optimistic entry stays; the view layer flags it as
	// unconfirmed. No echo will arrive, so the pending send is dropped.
	if payload.TempID != "" {
		c.registry.Remove(payload.TempID)
	}
	c.report(fmt.Errorf("%w: %s", ErrSendRejected, payload.Error))
}

func (c *Client) onConnect(json.RawMessage) {
	connectionState.Set(1)

	c.mu.Lock()
	reconnected := c.connectedOnce
	c.connectedOnce = true
	id, group := c.conversationID, c.group
	c.mu.Unlock()

	if reconnected {
		reconnects.Inc()
	}

	// Room membership is per connection, so the active group is joined
	// on every connect. This also covers a group opened while the
	// socket was down, whose join emit failed with ErrUnavailable; the
	// server treats a repeated join as a no-op.
	if group && id != "" {
		if err := c.conn.Emit(protocol.EventJoinGroup, protocol.GroupPayload{GroupID: id}); err != nil {
			log.Printf("Failed to join group %s: %v", id, err)
		}
	}
}

func (c *Client) onDisconnect(json.RawMessage) {
	connectionState.Set(0)
	// Presence can no longer be trusted until the next snapshot.
	c.presence.Reset()
	onlineUsers.Set(0)
}

func (c *Client) onConnectError(data json.RawMessage) {
	connectionState.Set(0)

	var payload protocol.MessageErrorPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
		c.report(errors.New("connection error"))
		return
	}
	c.report(errors.New(payload.Error))
}

func (c *Client) report(err error) {
	select {
	case c.errs <- err:
	default:
		log.Printf("Dropping engine error: %v", err)
	}
}
