// ABOUTME: Keys, snapshots, change notifications and error state for the store
// ABOUTME: Everything handed to the presentation layer is a copy

package conversation

import (
	"fmt"

	"github.com/pethome/pethome-inbox/internal/client"
)

// Key identifies a conversation from the viewer's side: one pet, one other
// user.
type Key struct {
	PetID  int64
	PeerID int64
}

func (k Key) String() string {
	return fmt.Sprintf("pet=%d peer=%d", k.PetID, k.PeerID)
}

// KeyOf returns the conversation msg belongs to for viewerID.
func KeyOf(msg client.Message, viewerID int64) Key {
	return Key{PetID: msg.PetID, PeerID: msg.Peer(viewerID)}
}

// KeyFor returns the key of a listed conversation.
func KeyFor(c client.Conversation) Key {
	return Key{PetID: c.PetID, PeerID: c.OtherUserID}
}

// ChangeKind says which part of the state changed.
type ChangeKind string

const (
	ChangeConversations ChangeKind = "conversations"
	ChangeSelection     ChangeKind = "selection"
	ChangeMessages      ChangeKind = "messages"
	ChangeIncoming      ChangeKind = "incoming"
	ChangeUnread        ChangeKind = "unread"
	ChangeSending       ChangeKind = "sending"
	ChangeRealtime      ChangeKind = "realtime"
	ChangeError         ChangeKind = "error"
)

// Change is the re-render signal published to subscribers.
type Change struct {
	Kind ChangeKind
	Key  Key
	// Message is set for ChangeIncoming.
	Message *client.Message
}

// Op names a store operation that can fail.
type Op string

const (
	OpLoad   Op = "load"
	OpSelect Op = "select"
	OpSend   Op = "send"
)

// OpError is the retryable error state left by a failed operation.
type OpError struct {
	Op  Op
	Key Key
	Err error
}

func (e *OpError) Error() string {
	if e.Op == OpLoad {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Snapshot is a point-in-time copy of the store state.
type Snapshot struct {
	// Conversations is in server order; UnreadCount holds the client-side
	// per-conversation counter.
	Conversations []client.Conversation
	Active        *Key
	// Messages is the active conversation, ascending by timestamp.
	Messages    []client.Message
	UnreadTotal int
	// UnreadByKey also covers conversations not yet in the list.
	UnreadByKey map[Key]int

	LoadingConversations bool
	LoadingMessages      bool
	Sending              bool

	// Realtime is false while the live channel is reconnecting.
	Realtime bool
	// Stale means the data came from the local cache after a failed fetch.
	Stale bool
	Err   *OpError
}

// Unread returns the per-conversation counter for key.
func (s Snapshot) Unread(key Key) int {
	return s.UnreadByKey[key]
}
