package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openwave/chatsync/internal/store"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/login", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "alice@example.com", creds["email"])

		json.NewEncoder(w).Encode(LoginResult{
			Token: "jwt-token",
			User:  UserProfile{ID: "u1", Name: "Alice", Email: "alice@example.com"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	result, err := client.Login(context.Background(), "alice@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "jwt-token", result.Token)
	require.Equal(t, "u1", result.User.ID)
}

func TestMessagesFetchesAndConvertsHistory(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/bob", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Write([]byte(`[
			{"_id":"m1","senderId":"bob","receiverId":"alice","text":"hey","status":"read","timestamp":"` + ts.Format(time.RFC3339) + `"},
			{"_id":"m2","senderId":"alice","receiverId":"bob","text":"hi","status":"delivered","fileUrl":"https://cdn/x.png","fileName":"x.png","fileType":"image/png","timestamp":"` + ts.Add(time.Minute).Format(time.RFC3339) + `"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	msgs, err := client.Messages(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	require.Equal(t, "m1", msgs[0].ID)
	require.Equal(t, "bob", msgs[0].ConversationID)
	require.Equal(t, store.StatusRead, msgs[0].Status)

	require.NotNil(t, msgs[1].Attachment)
	require.Equal(t, "https://cdn/x.png", msgs[1].Attachment.URL)
	require.Equal(t, store.StatusDelivered, msgs[1].Status)
}

func TestGroupMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/g1/messages", r.URL.Path)
		w.Write([]byte(`[
			{"_id":"gm1","senderId":"bob","groupId":"g1","text":"hello","timestamp":"2025-06-01T12:00:00Z",
			 "readBy":[{"user":"carol","readAt":"2025-06-01T12:01:00Z"}]}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	msgs, err := client.GroupMessages(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "g1", msgs[0].GroupID)
	require.True(t, msgs[0].IsGroup())
	require.True(t, msgs[0].ReadByUser("carol"))
}

func TestGroupUnreadCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/groups/unread-counts", r.URL.Path)
		w.Write([]byte(`[{"groupId":"g1","count":3},{"groupId":"g2","count":0}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")
	counts, err := client.GroupUnreadCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, 3, counts[0].Count)
}

func TestUnauthorizedAndServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/messages/denied":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok")

	_, err := client.Messages(context.Background(), "denied")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = client.Messages(context.Background(), "bob")
	require.Error(t, err)
}
