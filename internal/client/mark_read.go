// ABOUTME: Read receipts via PUT /messages/{id}/read
// ABOUTME: Idempotent on the server; repeating it for a read message is not an error

package client

import (
	"context"
	"fmt"
	"net/http"
)

// MarkRead flags messageID as read.
func (c *Client) MarkRead(ctx context.Context, messageID int64) error {
	if messageID <= 0 {
		return &ValidationError{Field: "messageId", Reason: "must be positive"}
	}
	return c.do(ctx, "mark read", http.MethodPut, fmt.Sprintf("/messages/%d/read", messageID), nil, nil, nil)
}
