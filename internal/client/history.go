// ABOUTME: Message history for one (pet, peer) conversation
// ABOUTME: Returned unsorted as the server sent it; callers sort with SortMessages

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// History fetches the messages exchanged between viewerID and peerID about
// petID. The result is in server order.
func (c *Client) History(ctx context.Context, petID, viewerID, peerID int64) ([]Message, error) {
	if petID <= 0 {
		return nil, &ValidationError{Field: "petId", Reason: "must be positive"}
	}
	if peerID <= 0 {
		return nil, &ValidationError{Field: "peerId", Reason: "must be positive"}
	}

	query := url.Values{}
	query.Set("petId", strconv.FormatInt(petID, 10))
	query.Set("senderId", strconv.FormatInt(viewerID, 10))
	query.Set("receiverId", strconv.FormatInt(peerID, 10))

	var raw []Message
	if err := c.do(ctx, "get history", http.MethodGet, "/messages/conversation", query, nil, &raw); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(raw))
	for _, msg := range raw {
		if err := msg.Validate(); err != nil {
			c.logger.Warn("dropping malformed message", "pet_id", petID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
