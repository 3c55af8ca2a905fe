// Package live maintains the server-push subscription for new messages.
//
// A Channel holds one GET /messages/stream request open and decodes each
// Server-Sent Event's data as a client.Message. It moves through
//
//	Disconnected -> Connecting -> Open -> (Error -> Connecting after backoff) | Closed
//
// Transport failures are retried forever using the configured Backoff (a fixed
// 5s delay unless exponential backoff is configured). A 401 stops the channel
// with client.ErrUnauthenticated, since the credential will not become valid
// by retrying. Close cancels the active request and returns only after the
// connection is released.
//
// Delivery is in server order but not exactly-once: a reconnect may replay
// or skip messages, so consumers deduplicate by message id.
package live
