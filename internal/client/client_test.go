// ABOUTME: Tests for the REST client core: auth headers, error mapping, decoding
// ABOUTME: Uses httptest servers standing in for the backend

package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token() (string, error) { return "", errors.New("no token on disk") }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	var unauth atomic.Int32
	c, err := New(Options{
		BaseURL:           srv.URL + "/api/v1",
		Tokens:            staticToken("tok-123"),
		OnUnauthenticated: func() { unauth.Add(1) },
	})
	require.NoError(t, err)
	return c, &unauth
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{BaseURL: "http://localhost:8080"})
	assert.Error(t, err, "missing token source")

	_, err = New(Options{BaseURL: "localhost:8080", Tokens: staticToken("x")})
	assert.Error(t, err, "missing scheme")

	c, err := New(Options{BaseURL: "http://localhost:8080/api/v1/", Tokens: staticToken("x")})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1", c.BaseURL())
}

func TestRequestHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		assert.Equal(t, "/api/v1/messages/unread-count", r.URL.Path)
		writeJSON(t, w, http.StatusOK, 4)
	})

	total, err := c.UnreadTotal(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestUnauthorizedMapsToErrUnauthenticated(t *testing.T) {
	c, unauth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListConversations(t.Context())
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(1), unauth.Load())
}

func TestMissingTokenIsUnauthenticated(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, Tokens: failingToken{}})
	require.NoError(t, err)

	_, err = c.Me(t.Context())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, hits.Load(), "no request without a token")
}

func TestServerErrorCarriesBodyMessage(t *testing.T) {
	c, unauth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]string{"message": "Receiver not found"})
	})

	_, err := c.SendMessage(t.Context(), 7, 3, "hello")
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, http.StatusBadRequest, srvErr.StatusCode)
	assert.Equal(t, "Receiver not found", srvErr.Message)
	assert.False(t, IsRetryable(err))
	assert.Zero(t, unauth.Load())
}

func TestServerErrorGenericMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	_, err := c.UnreadTotal(t.Context())
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "request failed: Bad Gateway", srvErr.Message)
	assert.True(t, IsRetryable(err))
}

func TestMalformedBodyIsServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := c.ListConversations(t.Context())
	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Contains(t, srvErr.Message, "malformed response")
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Tokens: staticToken("x"), Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.UnreadTotal(t.Context())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, IsRetryable(err))
}

func TestContextCancellation(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := c.UnreadTotal(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidationErrorMatches(t *testing.T) {
	err := error(&ValidationError{Field: "content", Reason: "must not be empty"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "invalid content: must not be empty", err.Error())
}
