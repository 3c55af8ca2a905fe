// ABOUTME: Authenticated JSON-over-HTTP client for the pet-adoption backend
// ABOUTME: Maps transport, 401 and non-2xx outcomes onto the client error taxonomy

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token() (string, error)
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api/v1.
	BaseURL string
	// Timeout applies when HTTPClient is nil. Zero means DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Tokens     TokenSource
	Logger     *slog.Logger
	// OnUnauthenticated runs whenever a call fails with ErrUnauthenticated,
	// typically tearing the session down.
	OnUnauthenticated func()
}

// Client issues authenticated requests to the REST API. It holds no mutable
// state beyond its configuration and is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenSource
	logger   *slog.Logger
	onUnauth func()
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		http:     httpClient,
		tokens:   opts.Tokens,
		logger:   logger.With("component", "client"),
		onUnauth: opts.OnUnauthenticated,
	}, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// do performs one request. body, when non-nil, is sent as JSON; out, when
// non-nil, receives the decoded JSON response.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	token, err := c.tokens.Token()
	if err != nil || token == "" {
		return c.unauthenticated(op, err)
	}
	return c.send(ctx, op, method, path, query, body, out, token)
}

// send performs the request; token is omitted from the headers when empty.
func (c *Client) send(ctx context.Context, op, method, path string, query url.Values, body, out any, token string) error {

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshaling request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "op", op, "request_id", requestID, "error", err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"op", op,
		"method", method,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		return c.unauthenticated(op, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "empty response body"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func (c *Client) unauthenticated(op string, cause error) error {
	if c.onUnauth != nil {
		c.onUnauth()
	}
	if cause != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthenticated, cause)
	}
	return fmt.Errorf("%s: %w", op, ErrUnauthenticated)
}

// errorMessage extracts the "message" (or "error") field of a JSON error
// body, falling back to a generic string.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return genericFailure(resp.StatusCode)
}
