// ABOUTME: Message sending via POST /messages
// ABOUTME: Blank content is rejected locally and never reaches the network

package client

import (
	"context"
	"net/http"
	"strings"
)

// SendMessage posts content to receiverID about petID and returns the
// message as stored by the server. Content is trimmed before sending.
func (c *Client) SendMessage(ctx context.Context, petID, receiverID int64, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if petID <= 0 {
		return nil, &ValidationError{Field: "petId", Reason: "must be positive"}
	}
	if receiverID <= 0 {
		return nil, &ValidationError{Field: "receiverId", Reason: "must be positive"}
	}

	req := sendRequest{
		ReceiverID: receiverID,
		PetID:      petID,
		Content:    content,
	}

	var msg Message
	if err := c.do(ctx, "send message", http.MethodPost, "/messages", nil, req, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, &ServerError{Op: "send message", StatusCode: http.StatusOK, Message: err.Error()}
	}
	return &msg, nil
}
