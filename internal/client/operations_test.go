// ABOUTME: Tests for the individual REST operations and payload parsing
// ABOUTME: Covers history queries, sending, read receipts, favorites and Me

package client

import (
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMe(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":12,"email":"ana@example.com","name":"Ana","userRole":"ADOPTER"}`))
	})

	user, err := c.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(12), user.ID)
	assert.Equal(t, "ADOPTER", user.Role)
}

func TestMeRejectsMissingID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"email":"ana@example.com"}`))
	})

	_, err := c.Me(t.Context())
	var srvErr *ServerError
	assert.ErrorAs(t, err, &srvErr)
}

func TestListConversationsKeepsOrderAndDropsMalformed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"petId":7,"petName":"Rex","otherUserId":3,"otherUserName":"Bo","lastMessage":"hi","timestamp":"2024-05-01T10:00:00"},
			{"petId":0,"otherUserId":3},
			{"petId":9,"petName":"Mia","otherUserId":4,"otherUserName":"Cy","lastMessage":"yo","lastMessageTime":"2024-04-01T10:00:00Z","unreadCount":2}
		]`))
	})

	convs, err := c.ListConversations(t.Context())
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, int64(7), convs[0].PetID)
	assert.Equal(t, int64(9), convs[1].PetID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), convs[0].LastMessageTime.Time)
	assert.Equal(t, 2, convs[1].UnreadCount)
}

func TestHistoryQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/messages/conversation", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "7", q.Get("petId"))
		assert.Equal(t, "1", q.Get("senderId"))
		assert.Equal(t, "3", q.Get("receiverId"))
		_, _ = w.Write([]byte(`[
			{"id":2,"senderId":3,"receiverId":1,"petId":7,"content":"b","timestamp":[2024,5,1,10,5,0],"isRead":true},
			{"id":1,"senderId":1,"receiverId":3,"petId":7,"content":"a","timestamp":"2024-05-01T10:00:00","read":false},
			{"id":0,"senderId":1,"receiverId":3,"petId":7}
		]`))
	})

	msgs, err := c.History(t.Context(), 7, 1, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2, "malformed entry dropped")
	assert.Equal(t, int64(2), msgs[0].ID, "server order preserved")
	assert.True(t, msgs[0].Read, "isRead alias honored")

	SortMessages(msgs)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, int64(2), msgs[1].ID)
}

func TestHistoryValidation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.History(t.Context(), 0, 1, 3)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendMessageTrimsContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello there", body["content"])
		assert.EqualValues(t, 3, body["receiverId"])
		assert.EqualValues(t, 7, body["petId"])

		_, _ = w.Write([]byte(`{"id":50,"senderId":1,"receiverId":3,"petId":7,"content":"hello there","timestamp":"2024-05-01T10:00:00","read":false}`))
	})

	msg, err := c.SendMessage(t.Context(), 7, 3, "  hello there \n")
	require.NoError(t, err)
	assert.Equal(t, int64(50), msg.ID)
}

func TestSendMessageBlankNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := c.SendMessage(t.Context(), 7, 3, content)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Zero(t, hits.Load())
}

func TestMarkRead(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/messages/42/read", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.MarkRead(t.Context(), 42))
	assert.ErrorIs(t, c.MarkRead(t.Context(), 0), ErrValidation)
}

func TestFavorites(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/favorites/7/status":
			_, _ = w.Write([]byte(`true`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/favorites/7":
			_, _ = io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/favorites/7":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/favorites/8":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/favorites":
			_, _ = w.Write([]byte(`[{"id":7,"petName":"Rex","specie":"dog","isAvailable":true}]`))
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	fav, err := c.FavoriteStatus(t.Context(), 7)
	require.NoError(t, err)
	assert.True(t, fav)

	require.NoError(t, c.AddFavorite(t.Context(), 7))
	require.NoError(t, c.RemoveFavorite(t.Context(), 7))
	require.NoError(t, c.RemoveFavorite(t.Context(), 8), "already removed")

	pets, err := c.ListFavorites(t.Context())
	require.NoError(t, err)
	require.Len(t, pets, 1)
	assert.Equal(t, "Rex", pets[0].PetName)
	require.NotNil(t, pets[0].IsAvailable)
	assert.True(t, *pets[0].IsAvailable)
}

func TestTimeParsing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"null", `null`, time.Time{}},
		{"local", `"2024-05-01T10:00:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"local fraction", `"2024-05-01T10:00:00.123"`, time.Date(2024, 5, 1, 10, 0, 0, 123000000, time.UTC)},
		{"rfc3339", `"2024-05-01T12:00:00+02:00"`, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"array", `[2024,5,1,10,0,0,500]`, time.Date(2024, 5, 1, 10, 0, 0, 500, time.UTC)},
		{"short array", `[2024,5,1]`, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Time
			require.NoError(t, json.Unmarshal([]byte(tt.input), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}

	var ts Time
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
}

func TestMessagePeer(t *testing.T) {
	m := Message{SenderID: 1, ReceiverID: 3}
	assert.Equal(t, int64(3), m.Peer(1))
	assert.Equal(t, int64(1), m.Peer(3))
	assert.True(t, m.Involves(3))
	assert.False(t, m.Involves(9))
}

func TestMessageValidate(t *testing.T) {
	valid := Message{ID: 1, SenderID: 1, ReceiverID: 3, PetID: 7, Content: "hi"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{"no id", func(m *Message) { m.ID = 0 }},
		{"no sender", func(m *Message) { m.SenderID = 0 }},
		{"no receiver", func(m *Message) { m.ReceiverID = -1 }},
		{"no pet", func(m *Message) { m.PetID = 0 }},
		{"empty content", func(m *Message) { m.Content = "" }},
		{"blank content", func(m *Message) { m.Content = " \n\t " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			assert.Error(t, m.Validate())
		})
	}
}

func TestHistoryDropsBlankContent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"id":1,"senderId":3,"receiverId":1,"petId":7,"content":"hello","timestamp":"2024-05-01T10:00:00"},
			{"id":2,"senderId":3,"receiverId":1,"petId":7,"content":"   ","timestamp":"2024-05-01T10:01:00"}
		]`))
	})

	msgs, err := c.History(t.Context(), 7, 1, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ID)
}

func TestLogin(t *testing.T) {
	c, unauth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "login is unauthenticated")
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Incorrect username or password."))
			return
		}
		_, _ = w.Write([]byte(`{"jwt":"tok-new","userId":12,"userRole":"ADOPTER","email":"ana@example.com"}`))
	})

	res, err := c.Login(t.Context(), " ana@example.com ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-new", res.JWT)
	assert.Equal(t, int64(12), res.UserID)

	_, err = c.Login(t.Context(), "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, unauth.Load(), "bad credentials do not tear down the session")

	_, err = c.Login(t.Context(), "", "secret")
	assert.ErrorIs(t, err, ErrValidation)
}
