// ABOUTME: Current-user lookup via GET /auth/me
// ABOUTME: The returned id scopes conversation keys and the live subscription

package client

import (
	"context"
	"net/http"
)

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, "get current user", http.MethodGet, "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	if err := user.Validate(); err != nil {
		return nil, &ServerError{Op: "get current user", StatusCode: http.StatusOK, Message: err.Error()}
	}
	return &user, nil
}
