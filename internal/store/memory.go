// ABOUTME: In-memory Store implementation for tests and cache-less runs
// ABOUTME: Mirrors SQLiteStore semantics without touching disk

package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/pethome/pethome-inbox/internal/client"
)

type messageKey struct {
	userID int64
	id     int64
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[int64]*Snapshot
	messages  map[messageKey]client.Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[int64]*Snapshot),
		messages:  make(map[messageKey]client.Message),
	}
}

func (m *MemoryStore) SaveConversations(ctx context.Context, userID int64, convs []client.Conversation, unreadTotal int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	type convKey struct{ pet, peer int64 }
	seen := make(map[convKey]bool, len(convs))
	copied := make([]client.Conversation, 0, len(convs))
	for _, c := range convs {
		k := convKey{c.PetID, c.OtherUserID}
		if seen[k] {
			continue
		}
		seen[k] = true
		copied = append(copied, c)
	}

	m.snapshots[userID] = &Snapshot{
		UserID:        userID,
		Conversations: copied,
		UnreadTotal:   unreadTotal,
		SavedAt:       time.Now(),
	}
	return nil
}

func (m *MemoryStore) GetConversations(ctx context.Context, userID int64) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[userID]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *snap
	result.Conversations = slices.Clone(snap.Conversations)
	return &result, nil
}

func (m *MemoryStore) SaveMessages(ctx context.Context, userID int64, msgs []client.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		k := messageKey{userID, msg.ID}
		if prev, ok := m.messages[k]; ok && prev.Read {
			msg.Read = true
		}
		m.messages[k] = msg
	}
	return nil
}

func (m *MemoryStore) GetMessages(ctx context.Context, userID, petID, peerID int64) ([]client.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []client.Message
	for k, msg := range m.messages {
		if k.userID == userID && msg.PetID == petID && msg.Peer(userID) == peerID {
			result = append(result, msg)
		}
	}
	slices.SortFunc(result, func(a, b client.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.snapshots, userID)
	for k := range m.messages {
		if k.userID == userID {
			delete(m.messages, k)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
