// ABOUTME: Password login via POST /auth/login, the only unauthenticated call
// ABOUTME: Returns the bearer token to be stored by the session layer

package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// LoginResult is the backend's authentication response.
type LoginResult struct {
	JWT    string `json:"jwt"`
	UserID int64  `json:"userId"`
	Role   string `json:"userRole"`
	Email  string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. Wrong credentials yield a
// *ValidationError, never ErrUnauthenticated.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Reason: "must not be empty"}
	}

	var result LoginResult
	err := c.send(ctx, "login", http.MethodPost, "/auth/login", nil, loginRequest{Email: email, Password: password}, &result, "")

	var srvErr *ServerError
	if errors.As(err, &srvErr) && (srvErr.StatusCode == http.StatusUnauthorized || srvErr.StatusCode == http.StatusNotFound) {
		return nil, &ValidationError{Field: "credentials", Reason: "incorrect email or password"}
	}
	if err != nil {
		return nil, err
	}
	if result.JWT == "" {
		return nil, &ServerError{Op: "login", StatusCode: http.StatusOK, Message: "response carried no token"}
	}
	return &result, nil
}
