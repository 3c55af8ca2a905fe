// Package client talks to the pet-adoption backend's REST API.
//
// # Overview
//
// Client wraps an http.Client with bearer authentication and a small error
// taxonomy. Every operation is a single request; nothing is cached and
// nothing is retried here. Retrying is the caller's decision, guided by
// IsRetryable.
//
// # Operations
//
//   - Login: POST /auth/login (unauthenticated; bad credentials are a *ValidationError)
//   - Me: GET /auth/me
//   - ListConversations: GET /messages/conversations
//   - UnreadTotal: GET /messages/unread-count
//   - History: GET /messages/conversation?petId&senderId&receiverId
//   - SendMessage: POST /messages
//   - MarkRead: PUT /messages/{id}/read
//   - FavoriteStatus, AddFavorite, RemoveFavorite, ListFavorites: /favorites
//
// # Errors
//
// A 401, or a missing token, yields an error matching ErrUnauthenticated and
// fires Options.OnUnauthenticated. Input rejected locally yields a
// *ValidationError. Transport failures yield *NetworkError, and any other
// non-2xx response yields *ServerError carrying the body's "message" field
// when one is present.
//
// # Timestamps
//
// The backend serializes zone-less local date-times, sometimes as strings and
// sometimes as arrays. Time accepts both and reads them as UTC.
package client
