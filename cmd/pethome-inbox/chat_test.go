// ABOUTME: Tests for REPL command parsing and terminal rendering
// ABOUTME: Colors are disabled so output can be compared as plain text

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/conversation"
)

func init() {
	color.NoColor = true
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantCmd  string
		wantArgs []string
	}{
		{"", "", nil},
		{"   ", "", nil},
		{"hello there", "", []string{"hello there"}},
		{"  is Rex still available?  ", "", []string{"is Rex still available?"}},
		{"/list", "list", []string{}},
		{"/OPEN 2", "open", []string{"2"}},
		{"/open 7 42", "open", []string{"7", "42"}},
		{"/q", "quit", []string{}},
		{"/exit", "quit", []string{}},
		{"/", "", []string{"/"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, args := parseCommand(tt.input)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestResolveOpen(t *testing.T) {
	snap := conversation.Snapshot{
		Conversations: []client.Conversation{
			{PetID: 7, OtherUserID: 42},
			{PetID: 9, OtherUserID: 43},
		},
	}

	key, err := resolveOpen([]string{"2"}, snap)
	require.NoError(t, err)
	assert.Equal(t, conversation.Key{PetID: 9, PeerID: 43}, key)

	key, err = resolveOpen([]string{"11", "12"}, snap)
	require.NoError(t, err)
	assert.Equal(t, conversation.Key{PetID: 11, PeerID: 12}, key)

	for _, args := range [][]string{{"0"}, {"3"}, {"x"}, {"1", "-4"}, {}, {"1", "2", "3"}} {
		_, err := resolveOpen(args, snap)
		assert.Error(t, err, "args %v", args)
	}
}

func TestPetArg(t *testing.T) {
	_, err := petArg(nil, conversation.Snapshot{})
	assert.Error(t, err)

	id, err := petArg(nil, conversation.Snapshot{Active: &conversation.Key{PetID: 5, PeerID: 6}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), id)

	id, err = petArg([]string{"8"}, conversation.Snapshot{Active: &conversation.Key{PetID: 5, PeerID: 6}})
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short one", preview("short\n  one"))

	long := preview(string(bytes.Repeat([]byte("a"), 100)))
	assert.Equal(t, previewWidth, len([]rune(long)))
	assert.Contains(t, long, "…")
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Alice", displayName(" Alice ", 3))
	assert.Equal(t, "#3", displayName("", 3))
}

func TestViewConversations(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, 1)

	active := conversation.Key{PetID: 7, PeerID: 42}
	v.conversations(conversation.Snapshot{
		Conversations: []client.Conversation{
			{PetID: 7, PetName: "Rex", OtherUserID: 42, OtherUserName: "Bob", LastMessage: "hi"},
			{PetID: 9, PetName: "Mia", OtherUserID: 43, OtherUserName: "Cara"},
		},
		Active:      &active,
		UnreadTotal: 3,
		UnreadByKey: map[conversation.Key]int{{PetID: 9, PeerID: 43}: 3},
		Stale:       true,
	})

	out := buf.String()
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "*  1. Bob about Rex")
	assert.Contains(t, out, "   2. Cara about Mia (3 new)")
	assert.Contains(t, out, "Unread total: 3")
}

func TestViewConversationsEmpty(t *testing.T) {
	var buf bytes.Buffer
	newView(&buf, 1).conversations(conversation.Snapshot{})
	assert.Contains(t, buf.String(), "No conversations yet.")
}

func TestViewMessages(t *testing.T) {
	var buf bytes.Buffer
	v := newView(&buf, 1)
	active := conversation.Key{PetID: 7, PeerID: 42}
	ts := client.NewTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	v.messages(conversation.Snapshot{
		Active: &active,
		Messages: []client.Message{
			{ID: 1, SenderID: 42, SenderName: "Bob", ReceiverID: 1, PetID: 7, Content: "Is Rex good with cats?", Timestamp: ts},
			{ID: 2, SenderID: 1, ReceiverID: 42, PetID: 7, Content: "Very!", Timestamp: ts},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Bob: Is Rex good with cats?")
	assert.Contains(t, out, "you: Very!")
}

func TestViewMessagesNoSelection(t *testing.T) {
	var buf bytes.Buffer
	newView(&buf, 1).messages(conversation.Snapshot{})
	assert.Contains(t, buf.String(), "No conversation selected")
}

func TestViewNotify(t *testing.T) {
	var buf bytes.Buffer
	newView(&buf, 1).notify(client.Message{
		ID: 3, SenderID: 43, ReceiverID: 1, PetID: 9, PetName: "Mia", Content: "hello",
	}, 2)

	assert.Contains(t, buf.String(), "New message from #43 about Mia (2 unread): hello")
}

func TestViewStatus(t *testing.T) {
	var buf bytes.Buffer
	newView(&buf, 1).status(conversation.Snapshot{
		UnreadTotal: 4,
		Err:         &conversation.OpError{Op: conversation.OpLoad, Err: assert.AnError},
	}, &client.User{ID: 1, Name: "Alice"})

	out := buf.String()
	assert.Contains(t, out, "Signed in as Alice (id 1)")
	assert.Contains(t, out, "reconnecting")
	assert.Contains(t, out, "Unread total: 4")
	assert.Contains(t, out, "/retry")
}
