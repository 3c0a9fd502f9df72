// internal/api/client.go

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openwave/chatsync/internal/protocol"
	"github.com/openwave/chatsync/internal/store"
)

var ErrUnauthorized = errors.New("unauthorized")

// Client talks to the chat server's HTTP endpoints: authentication,
// conversation history and unread counts. The socket owns everything
// real-time; this client only seeds state.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// UserProfile is the server's user record, as returned by login.
type UserProfile struct {
	ID             string `json:"_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// LoginResult carries the token and identity the rest of the engine is
// constructed with.
type LoginResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/users/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var result LoginResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("login response missing token")
	}
	return &result, nil
}

// Messages fetches the direct conversation history with a peer, oldest
// first, converted into store entries scoped to that peer.
func (c *Client) Messages(ctx context.Context, peerID string) ([]*store.Message, error) {
	var wire []protocol.WireMessage
	if err := c.get(ctx, "/messages/"+peerID, &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch messages for %s: %w", peerID, err)
	}

	out := make([]*store.Message, 0, len(wire))
	for _, w := range wire {
		msg := w.ToMessage()
		msg.ConversationID = peerID
		out = append(out, msg)
	}
	return out, nil
}

// GroupMessages fetches a group's history.
func (c *Client) GroupMessages(ctx context.Context, groupID string) ([]*store.Message, error) {
	var wire []protocol.WireMessage
	if err := c.get(ctx, "/groups/"+groupID+"/messages", &wire); err != nil {
		return nil, fmt.Errorf("failed to fetch group messages for %s: %w", groupID, err)
	}

	out := make([]*store.Message, 0, len(wire))
	for _, w := range wire {
		msg := w.ToMessage()
		msg.ConversationID = groupID
		msg.GroupID = groupID
		out = append(out, msg)
	}
	return out, nil
}

// GroupUnread is the unread message count for one group.
type GroupUnread struct {
	GroupID string `json:"groupId"`
	Count   int    `json:"count"`
}

// GroupUnreadCounts fetches unread counts across the viewer's groups.
func (c *Client) GroupUnreadCounts(ctx context.Context) ([]GroupUnread, error) {
	var counts []GroupUnread
	if err := c.get(ctx, "/groups/unread-counts", &counts); err != nil {
		return nil, fmt.Errorf("failed to fetch unread counts: %w", err)
	}
	return counts, nil
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if dst == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
