// ABOUTME: Terminal rendering of store snapshots and live changes
// ABOUTME: All writes go through one mutex so REPL output and pushes never interleave

package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/conversation"
)

const (
	previewWidth = 48
	clockLayout  = "Jan 02 15:04"
)

type view struct {
	mu       sync.Mutex
	out      io.Writer
	viewerID int64

	dim    *color.Color
	bold   *color.Color
	accent *color.Color
	warn   *color.Color
	alert  *color.Color
}

func newView(out io.Writer, viewerID int64) *view {
	return &view{
		out:      out,
		viewerID: viewerID,
		dim:      color.New(color.FgHiBlack),
		bold:     color.New(color.Bold),
		accent:   color.New(color.FgCyan),
		warn:     color.New(color.FgYellow),
		alert:    color.New(color.FgRed),
	}
}

func (v *view) printf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintf(v.out, format, args...)
}

// conversations lists the inbox, numbered from 1 for /open.
func (v *view) conversations(snap conversation.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap.Stale {
		v.warn.Fprintln(v.out, "(offline: showing cached conversations)")
	}
	if len(snap.Conversations) == 0 {
		if snap.LoadingConversations {
			v.dim.Fprintln(v.out, "Loading conversations...")
		} else {
			v.dim.Fprintln(v.out, "No conversations yet.")
		}
		return
	}

	for i, c := range snap.Conversations {
		key := conversation.KeyFor(c)
		marker := " "
		if snap.Active != nil && *snap.Active == key {
			marker = "*"
		}
		fmt.Fprintf(v.out, "%s%3d. ", marker, i+1)
		v.bold.Fprintf(v.out, "%s", displayName(c.OtherUserName, c.OtherUserID))
		fmt.Fprintf(v.out, " about ")
		v.accent.Fprintf(v.out, "%s", displayName(c.PetName, c.PetID))
		if n := snap.Unread(key); n > 0 {
			v.alert.Fprintf(v.out, " (%d new)", n)
		}
		fmt.Fprintln(v.out)
		if c.LastMessage != "" {
			v.dim.Fprintf(v.out, "       %s  %s\n", formatClock(c.LastMessageTime.Time), preview(c.LastMessage))
		}
	}
	fmt.Fprintf(v.out, "Unread total: %d\n", snap.UnreadTotal)
}

// messages prints the active conversation.
func (v *view) messages(snap conversation.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if snap.Active == nil {
		v.dim.Fprintln(v.out, "No conversation selected. Use /open <n>.")
		return
	}
	if snap.Stale {
		v.warn.Fprintln(v.out, "(offline: showing cached messages)")
	}
	if len(snap.Messages) == 0 {
		if snap.LoadingMessages {
			v.dim.Fprintln(v.out, "Loading messages...")
		} else {
			v.dim.Fprintln(v.out, "No messages yet. Say hello!")
		}
		return
	}
	for _, m := range snap.Messages {
		v.messageLocked(m)
	}
}

func (v *view) message(m client.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messageLocked(m)
}

func (v *view) messageLocked(m client.Message) {
	v.dim.Fprintf(v.out, "[%s] ", formatClock(m.Timestamp.Time))
	if m.SenderID == v.viewerID {
		v.accent.Fprint(v.out, "you")
	} else {
		v.bold.Fprint(v.out, displayName(m.SenderName, m.SenderID))
	}
	fmt.Fprintf(v.out, ": %s\n", m.Content)
}

// notify announces a message for a conversation that is not open.
func (v *view) notify(m client.Message, unread int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.alert.Fprint(v.out, "● ")
	fmt.Fprintf(v.out, "New message from ")
	v.bold.Fprint(v.out, displayName(m.SenderName, m.SenderID))
	fmt.Fprint(v.out, " about ")
	v.accent.Fprint(v.out, displayName(m.PetName, m.PetID))
	fmt.Fprintf(v.out, " (%d unread): %s\n", unread, preview(m.Content))
}

func (v *view) status(snap conversation.Snapshot, user *client.User) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if user != nil {
		fmt.Fprintf(v.out, "Signed in as %s (id %d)\n", displayName(user.Name, user.ID), user.ID)
	}
	if snap.Realtime {
		fmt.Fprintln(v.out, "Live updates: connected")
	} else {
		v.warn.Fprintln(v.out, "Live updates: reconnecting")
	}
	if snap.Active != nil {
		fmt.Fprintf(v.out, "Open conversation: %s\n", snap.Active)
	}
	if snap.Sending {
		v.dim.Fprintln(v.out, "Sending...")
	}
	fmt.Fprintf(v.out, "Unread total: %d\n", snap.UnreadTotal)
	if snap.Err != nil {
		v.alert.Fprintf(v.out, "Last error: %v (use /retry)\n", snap.Err)
	}
}

func (v *view) errorf(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.alert.Fprintf(v.out, "[error] "+format+"\n", args...)
}

func (v *view) notice(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dim.Fprintf(v.out, format+"\n", args...)
}

func displayName(name string, id int64) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewWidth {
		return s
	}
	return string(r[:previewWidth-1]) + "…"
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	return t.Local().Format(clockLayout)
}
