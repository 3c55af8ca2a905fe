// Package conversation holds the inbox state machine.
//
// # Overview
//
// Store is the single source of truth for the conversation list, the active
// conversation's messages and the unread counters. It sits between the REST
// client (commands), the live channel (events) and the presentation layer
// (snapshots plus change notifications):
//
//	presentation -> Store.Select/Send -> client -> backend
//	backend -> live.Channel -> Store.Run/OnPush -> Broadcaster -> presentation
//
// # Operations
//
//   - LoadConversations: list + global unread total; auto-selects the first
//     conversation when nothing is selected (unless Options.NoAutoSelect).
//   - Select: history fetch, ascending sort, parallel read receipts for
//     unread messages addressed to the viewer, per-conversation counter reset.
//   - Send: at most one in flight; the server echo is appended once.
//   - OnPush: append to the active conversation, or bump unread counters once
//     per message id.
//   - MarkRead, Retry, SetRealtime, Snapshot, Subscribe.
//
// # Consistency
//
// Every Select bumps a generation counter; a history response from an older
// generation is dropped without touching state. Messages are deduplicated by
// id on append, and a TTL seen-set keeps replayed pushes from counting twice.
// The global unread total is replaced by the server's value on every load;
// per-conversation counters are client-derived.
//
// # Failures
//
// A failed load or select leaves the last good state in place and records an
// OpError that Retry re-runs. With a snapshot cache configured and nothing in
// memory, the cached list or history is shown and Snapshot.Stale is set.
// client.ErrUnauthenticated from any call fires Options.OnUnauthenticated.
package conversation
