// ABOUTME: Tests for HTML transcript rendering
// ABOUTME: Checks Markdown conversion, author labels and HTML escaping

package transcript

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pethome/pethome-inbox/internal/client"
)

func render(t *testing.T, conv Conversation) string {
	t.Helper()
	r := New()
	r.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, conv))
	return buf.String()
}

func TestRenderConversation(t *testing.T) {
	ts := client.NewTime(time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC))
	out := render(t, Conversation{
		ViewerID: 1,
		PetName:  "Rex",
		PeerName: "Bo",
		Messages: []client.Message{
			{ID: 1, SenderID: 10, ReceiverID: 1, PetID: 7, Content: "Is **Rex** still available?", Timestamp: ts},
			{ID: 2, SenderID: 1, ReceiverID: 10, PetID: 7, Content: "Yes, see https://example.com/rex", Timestamp: ts, Read: true},
		},
	})

	assert.Contains(t, out, "<title>Rex with Bo</title>")
	assert.Contains(t, out, "2 messages, exported 2024-06-01 12:00 UTC")
	assert.Contains(t, out, "<strong>Rex</strong>")
	assert.Contains(t, out, `<a href="https://example.com/rex">`)
	assert.Contains(t, out, "Bo &middot; 2024-05-01 10:15")
	assert.Contains(t, out, "You &middot;")
	assert.Contains(t, out, `class="msg peer unread"`)
	assert.Contains(t, out, `class="msg self"`)
}

func TestRenderDropsRawHTML(t *testing.T) {
	out := render(t, Conversation{
		ViewerID: 1,
		Messages: []client.Message{
			{ID: 1, SenderID: 10, ReceiverID: 1, Content: "<script>alert(1)</script>hello"},
		},
	})

	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "<title>Conversation</title>")
	assert.Contains(t, out, "unknown time")
	assert.Contains(t, out, "User 10")
}

func TestRenderEmpty(t *testing.T) {
	out := render(t, Conversation{ViewerID: 1, PetName: "Mia"})
	assert.Contains(t, out, "No messages.")
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
}

func TestRenderEscapesNames(t *testing.T) {
	out := render(t, Conversation{
		ViewerID: 1,
		PetName:  "<b>Rex</b>",
		Messages: []client.Message{
			{ID: 1, SenderID: 10, ReceiverID: 1, SenderName: "Eve <img>", Content: "hi"},
		},
	})
	assert.Contains(t, out, "&lt;b&gt;Rex&lt;/b&gt;")
	assert.Contains(t, out, "Eve &lt;img&gt;")
}
