// ABOUTME: Conversation list and global unread count endpoints
// ABOUTME: Server ordering (most recent first) is preserved as received

package client

import (
	"context"
	"net/http"
)

// ListConversations returns the viewer's conversations in server order.
// Entries without a pet or peer are dropped.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var raw []Conversation
	if err := c.do(ctx, "list conversations", http.MethodGet, "/messages/conversations", nil, nil, &raw); err != nil {
		return nil, err
	}

	convs := make([]Conversation, 0, len(raw))
	for _, conv := range raw {
		if err := conv.Validate(); err != nil {
			c.logger.Warn("dropping malformed conversation", "error", err)
			continue
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

// UnreadTotal returns the authoritative count of unread messages addressed
// to the viewer.
func (c *Client) UnreadTotal(ctx context.Context) (int, error) {
	var count int64
	if err := c.do(ctx, "get unread count", http.MethodGet, "/messages/unread-count", nil, nil, &count); err != nil {
		return 0, err
	}
	if count < 0 {
		count = 0
	}
	return int(count), nil
}
