// ABOUTME: Snapshot cache interface and types for offline conversation state
// ABOUTME: Holds the last good conversation list and histories per viewer

package store

import (
	"context"
	"errors"
	"time"

	"github.com/pethome/pethome-inbox/internal/client"
)

// ErrNotFound is returned when no snapshot exists for a viewer
var ErrNotFound = errors.New("not found")

// Snapshot is the last conversation list saved for a viewer.
type Snapshot struct {
	UserID        int64
	Conversations []client.Conversation
	UnreadTotal   int
	SavedAt       time.Time
}

// Store persists the last known good state so a failed load can still show
// something. It is a cache: the server stays authoritative.
type Store interface {
	// SaveConversations replaces the viewer's conversation list, keeping
	// the given order.
	SaveConversations(ctx context.Context, userID int64, convs []client.Conversation, unreadTotal int) error
	// GetConversations returns ErrNotFound if nothing was saved.
	GetConversations(ctx context.Context, userID int64) (*Snapshot, error)

	// SaveMessages upserts messages by id.
	SaveMessages(ctx context.Context, userID int64, msgs []client.Message) error
	// GetMessages returns one conversation's messages ordered by timestamp,
	// then id.
	GetMessages(ctx context.Context, userID, petID, peerID int64) ([]client.Message, error)

	// Clear drops everything saved for the viewer.
	Clear(ctx context.Context, userID int64) error

	Close() error
}
