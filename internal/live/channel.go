// ABOUTME: Long-lived SSE subscription delivering inbound messages for one user
// ABOUTME: Reconnects on transport errors until closed; a rejected credential is terminal

package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pethome/pethome-inbox/internal/client"
)

// ErrStream marks a failure of the push transport. It is recovered by
// reconnecting and only ever surfaces through OnState.
var ErrStream = errors.New("stream error")

// ErrClosed is returned by Start on a channel that was already closed.
var ErrClosed = errors.New("channel closed")

// State is the connection state of a Channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
	Error
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Error:
		return "error"
	case Closed:
		return "closed"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Options configures a Channel.
type Options struct {
	BaseURL string
	UserID  int64
	Tokens  client.TokenSource
	// HTTPClient must not carry an overall timeout; nil uses one without.
	HTTPClient *http.Client
	Backoff    Backoff
	Logger     *slog.Logger
	// OnState observes every transition. err is set for Error and for a
	// terminal Closed. It runs on the channel goroutine and must not block.
	OnState func(state State, err error)
	// Buffer is the capacity of the Events channel.
	Buffer int
}

// Channel is a reconnecting subscription to GET /messages/stream.
type Channel struct {
	endpoint string
	userID   int64
	tokens   client.TokenSource
	http     *http.Client
	backoff  Backoff
	logger   *slog.Logger
	onState  func(State, error)

	events chan client.Message

	mu      sync.Mutex
	state   State
	err     error
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a disconnected channel. Call Start to connect.
func New(opts Options) (*Channel, error) {
	if opts.UserID <= 0 {
		return nil, fmt.Errorf("user id must be positive, got %d", opts.UserID)
	}
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil || opts.BaseURL == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}

	return &Channel{
		endpoint: strings.TrimSuffix(opts.BaseURL, "/") + "/messages/stream",
		userID:   opts.UserID,
		tokens:   opts.Tokens,
		http:     httpClient,
		backoff:  opts.Backoff,
		logger:   logger.With("component", "live", "user_id", opts.UserID),
		onState:  opts.OnState,
		events:   make(chan client.Message, buffer),
		done:     make(chan struct{}),
	}, nil
}

// Events delivers inbound messages in server send order. It is closed after
// the channel stops. Duplicates are possible across reconnects.
func (c *Channel) Events() <-chan client.Message {
	return c.events
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal error, if the channel stopped on its own.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done is closed once the channel goroutine has exited.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Start begins connecting in the background. It is a no-op after the first
// call and fails once the channel is closed.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(ctx)
	return nil
}

// Close tears the subscription down and waits for the active connection to
// be released. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()

	if !started {
		close(c.events)
		close(c.done)
		c.setState(Closed, nil)
		return nil
	}

	cancel()
	<-c.done
	return nil
}

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	attempt := 0
	for {
		c.setState(Connecting, nil)
		err := c.connect(ctx, func() {
			attempt = 0
			c.setState(Open, nil)
		})

		if ctx.Err() != nil {
			c.setState(Closed, nil)
			return
		}
		if client.IsUnauthenticated(err) {
			c.logger.Warn("stream rejected credential", "error", err)
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			c.setState(Closed, err)
			return
		}

		delay := c.backoff.Delay(attempt)
		attempt++
		c.logger.Debug("stream disconnected, reconnecting", "error", err, "delay", delay, "attempt", attempt)
		c.setState(Error, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(Closed, nil)
			return
		case <-timer.C:
		}
	}
}

// connect runs one subscription until it fails. onOpen fires once the
// server accepts the stream.
func (c *Channel) connect(ctx context.Context, onOpen func()) error {
	token, err := c.tokens.Token()
	if err != nil || token == "" {
		return fmt.Errorf("subscribing: %w", client.ErrUnauthenticated)
	}

	query := url.Values{}
	query.Set("userId", strconv.FormatInt(c.userID, 10))
	query.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", ErrStream, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("subscribing: %w", client.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d", ErrStream, resp.StatusCode)
	}

	onOpen()

	err = readEvents(ctx, resp.Body, func(ev Event) error {
		return c.dispatch(ctx, ev)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	return fmt.Errorf("%w: server closed stream", ErrStream)
}

func (c *Channel) dispatch(ctx context.Context, ev Event) error {
	if ev.Type != "message" {
		c.logger.Debug("ignoring event", "type", ev.Type)
		return nil
	}

	var msg client.Message
	if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
		c.logger.Warn("dropping undecodable event", "error", err)
		return nil
	}
	if err := msg.Validate(); err != nil {
		c.logger.Warn("dropping invalid message", "error", err)
		return nil
	}
	if !msg.Involves(c.userID) {
		c.logger.Warn("dropping message for another user", "message_id", msg.ID)
		return nil
	}

	select {
	case c.events <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) setState(state State, err error) {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return
	}
	c.state = state
	onState := c.onState
	c.mu.Unlock()

	if onState != nil {
		onState(state, err)
	}
}
