// ABOUTME: Renders one conversation as a standalone HTML page
// ABOUTME: Message bodies are Markdown; raw HTML in content is never passed through

package transcript

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pethome/pethome-inbox/internal/client"
)

//go:embed templates/transcript.html
var templateFS embed.FS

var page = template.Must(template.ParseFS(templateFS, "templates/transcript.html"))

const timeLayout = "2006-01-02 15:04"

// Conversation is everything needed to render one transcript.
type Conversation struct {
	ViewerID   int64
	PetName    string
	PeerName   string
	ViewerName string
	Messages   []client.Message
}

type renderedMessage struct {
	Author   string
	Time     string
	Body     template.HTML
	FromSelf bool
	Unread   bool
}

// Renderer converts conversations to HTML.
type Renderer struct {
	md  goldmark.Markdown
	now func() time.Time
}

// New creates a Renderer with autolinking and strikethrough enabled.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		),
		now: time.Now,
	}
}

// Render writes the transcript page for conv to w. Messages are rendered in
// the order given.
func (r *Renderer) Render(w io.Writer, conv Conversation) error {
	msgs := make([]renderedMessage, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		body, err := r.markdown(m.Content)
		if err != nil {
			return fmt.Errorf("rendering message %d: %w", m.ID, err)
		}
		fromSelf := m.SenderID == conv.ViewerID
		msgs = append(msgs, renderedMessage{
			Author:   author(m, conv, fromSelf),
			Time:     formatTime(m.Timestamp.Time),
			Body:     body,
			FromSelf: fromSelf,
			Unread:   !m.Read && m.ReceiverID == conv.ViewerID,
		})
	}

	data := struct {
		Title      string
		ExportedAt string
		Messages   []renderedMessage
	}{
		Title:      title(conv),
		ExportedAt: r.now().UTC().Format(timeLayout) + " UTC",
		Messages:   msgs,
	}

	if err := page.Execute(w, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}
	return nil
}

func (r *Renderer) markdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	// goldmark omits raw HTML unless WithUnsafe is set
	return template.HTML(buf.String()), nil
}

func author(m client.Message, conv Conversation, fromSelf bool) string {
	switch {
	case fromSelf && conv.ViewerName != "":
		return conv.ViewerName
	case fromSelf:
		return "You"
	case m.SenderName != "":
		return m.SenderName
	case conv.PeerName != "":
		return conv.PeerName
	default:
		return fmt.Sprintf("User %d", m.SenderID)
	}
}

func title(conv Conversation) string {
	switch {
	case conv.PetName != "" && conv.PeerName != "":
		return fmt.Sprintf("%s with %s", conv.PetName, conv.PeerName)
	case conv.PetName != "":
		return conv.PetName
	default:
		return "Conversation"
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown time"
	}
	return t.UTC().Format(timeLayout)
}
