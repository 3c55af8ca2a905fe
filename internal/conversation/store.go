// ABOUTME: Conversation Store: single source of truth for the inbox state
// ABOUTME: Mediates between the REST client, the live channel and the presentation layer

package conversation

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/dedupe"
	"github.com/pethome/pethome-inbox/internal/store"
)

const (
	// DefaultMarkReadLimit bounds concurrent mark-read calls on select.
	DefaultMarkReadLimit = 8

	// countedTTL is how long a message id stays in the unread seen-set.
	countedTTL = 12 * time.Hour

	cacheTimeout = 5 * time.Second
)

// API is what the store needs from the REST client.
type API interface {
	ListConversations(ctx context.Context) ([]client.Conversation, error)
	UnreadTotal(ctx context.Context) (int, error)
	History(ctx context.Context, petID, viewerID, peerID int64) ([]client.Message, error)
	SendMessage(ctx context.Context, petID, receiverID int64, content string) (*client.Message, error)
	MarkRead(ctx context.Context, messageID int64) error
}

// Options configures a Store.
type Options struct {
	API    API
	UserID int64
	// Cache, when set, receives every good load and serves as a fallback
	// when the backend is unreachable.
	Cache  store.Store
	Logger *slog.Logger
	// MarkReadLimit bounds the mark-read fan-out. Zero means the default.
	MarkReadLimit int
	// OnUnauthenticated runs whenever an operation fails with
	// client.ErrUnauthenticated.
	OnUnauthenticated func()
	// NoAutoSelect keeps LoadConversations from opening the first
	// conversation. Relays set it so nothing is marked read unseen.
	NoAutoSelect bool
}

// Store holds the conversation list, the active conversation's messages
// and the unread counters. All methods are safe for concurrent use.
type Store struct {
	api           API
	userID        int64
	cache         store.Store
	logger        *slog.Logger
	broadcaster   *Broadcaster
	markReadLimit int
	onUnauth      func()
	autoSelect    bool

	mu          sync.Mutex
	convs       []client.Conversation
	unread      map[Key]int
	unreadTotal int

	active     *Key
	messages   []client.Message
	msgIndex   map[int64]int
	generation uint64

	loadingConvs bool
	loadingMsgs  bool
	sending      bool
	realtime     bool
	stale        bool
	lastErr      *OpError

	// counted holds ids already added to the unread counters, so replays
	// and echoes never count twice.
	counted *dedupe.Set[int64]
	// discounted holds ids already subtracted from unreadTotal, or never
	// part of it. Reset whenever the server total is reloaded.
	discounted *dedupe.Set[int64]
}

// New creates a Store for the viewer identified by opts.UserID.
func New(opts Options) (*Store, error) {
	if opts.API == nil {
		return nil, errors.New("api is required")
	}
	if opts.UserID <= 0 {
		return nil, errors.New("user id must be positive")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.MarkReadLimit
	if limit <= 0 {
		limit = DefaultMarkReadLimit
	}

	return &Store{
		api:           opts.API,
		userID:        opts.UserID,
		cache:         opts.Cache,
		logger:        logger.With("component", "conversation", "user_id", opts.UserID),
		broadcaster:   NewBroadcaster(logger),
		markReadLimit: limit,
		onUnauth:      opts.OnUnauthenticated,
		autoSelect:    !opts.NoAutoSelect,
		unread:        make(map[Key]int),
		msgIndex:      make(map[int64]int),
		counted:       dedupe.New[int64](countedTTL, dedupe.DefaultMaxSize),
		discounted:    dedupe.New[int64](countedTTL, dedupe.DefaultMaxSize),
	}, nil
}

// UserID returns the viewer id.
func (s *Store) UserID() int64 { return s.userID }

// Subscribe returns a channel of change notifications, closed when ctx ends
// or the store is closed.
func (s *Store) Subscribe(ctx context.Context) (<-chan Change, string) {
	return s.broadcaster.Subscribe(ctx)
}

// Close releases subscribers.
func (s *Store) Close() {
	s.broadcaster.Close()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Conversations:        slices.Clone(s.convs),
		Messages:             slices.Clone(s.messages),
		UnreadTotal:          s.unreadTotal,
		UnreadByKey:          make(map[Key]int, len(s.unread)),
		LoadingConversations: s.loadingConvs,
		LoadingMessages:      s.loadingMsgs,
		Sending:              s.sending,
		Realtime:             s.realtime,
		Stale:                s.stale,
	}
	for k, n := range s.unread {
		if n > 0 {
			snap.UnreadByKey[k] = n
		}
	}
	for i := range snap.Conversations {
		snap.Conversations[i].UnreadCount = s.unread[KeyFor(snap.Conversations[i])]
	}
	if s.active != nil {
		active := *s.active
		snap.Active = &active
	}
	if s.lastErr != nil {
		errCopy := *s.lastErr
		snap.Err = &errCopy
	}
	return snap
}

// LoadConversations fetches the conversation list and the global unread
// total. Per-conversation counters restart from the server's values (zero
// when it sends none). If nothing is selected, the first conversation is
// selected and its error, if any, is returned.
func (s *Store) LoadConversations(ctx context.Context) error {
	s.mu.Lock()
	s.loadingConvs = true
	s.mu.Unlock()
	s.publish(Change{Kind: ChangeConversations})

	var (
		convs []client.Conversation
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = s.api.ListConversations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.api.UnreadTotal(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		s.failLoad(ctx, err)
		return err
	}

	convs = uniqueConversations(convs)

	s.mu.Lock()
	s.convs = convs
	s.unread = make(map[Key]int, len(convs))
	for _, c := range convs {
		if c.UnreadCount > 0 {
			s.unread[KeyFor(c)] = c.UnreadCount
		}
	}
	s.unreadTotal = total
	s.discounted.Reset()
	s.loadingConvs = false
	s.stale = false
	if s.lastErr != nil && s.lastErr.Op == OpLoad {
		s.lastErr = nil
	}
	var first *Key
	if s.autoSelect && s.active == nil && len(convs) > 0 {
		k := KeyFor(convs[0])
		first = &k
	}
	s.mu.Unlock()

	s.logger.Debug("conversations loaded", "count", len(convs), "unread_total", total)
	s.publish(Change{Kind: ChangeConversations})
	s.publish(Change{Kind: ChangeUnread})
	s.saveConversations(convs, total)

	if first != nil {
		return s.Select(ctx, first.PetID, first.PeerID)
	}
	return nil
}

func (s *Store) failLoad(ctx context.Context, err error) {
	s.logger.Warn("loading conversations failed", "error", err)

	var snap *store.Snapshot
	s.mu.Lock()
	empty := len(s.convs) == 0
	s.mu.Unlock()
	if empty && s.cache != nil && !client.IsUnauthenticated(err) {
		snap = s.cachedConversations(ctx)
	}

	s.mu.Lock()
	s.loadingConvs = false
	s.lastErr = &OpError{Op: OpLoad, Err: err}
	if snap != nil && len(s.convs) == 0 {
		s.convs = uniqueConversations(snap.Conversations)
		s.unread = make(map[Key]int)
		s.unreadTotal = snap.UnreadTotal
		s.stale = true
	}
	s.mu.Unlock()

	s.handleUnauthenticated(err)
	s.publish(Change{Kind: ChangeError})
	if snap != nil {
		s.publish(Change{Kind: ChangeConversations})
	}
}

// Select makes (petID, peerID) the active conversation, fetches its
// history and flushes read receipts for unread messages addressed to the
// viewer. A response that arrives after another Select is discarded.
func (s *Store) Select(ctx context.Context, petID, peerID int64) error {
	key := Key{PetID: petID, PeerID: peerID}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.active == nil || *s.active != key {
		s.messages = nil
		s.msgIndex = make(map[int64]int)
	}
	s.active = &key
	s.loadingMsgs = true
	s.mu.Unlock()
	s.publish(Change{Kind: ChangeSelection, Key: key})

	history, err := s.api.History(ctx, petID, s.userID, peerID)

	if err != nil {
		return s.failSelect(ctx, key, gen, err)
	}

	client.SortMessages(history)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history", "key", key)
		return nil
	}

	// Keep pushes that arrived while the fetch was in flight
	merged := history
	fetched := make(map[int64]bool, len(history))
	for _, m := range history {
		fetched[m.ID] = true
	}
	for _, m := range s.messages {
		if !fetched[m.ID] {
			merged = append(merged, m)
		}
	}
	client.SortMessages(merged)

	var (
		toMark     []int64
		subtracted int
	)
	for i := range merged {
		m := &merged[i]
		if m.ReceiverID == s.userID && !m.Read {
			m.Read = true
			toMark = append(toMark, m.ID)
			s.counted.Mark(m.ID)
			// A dropped read receipt leaves the message unread on the
			// server; selecting again must not subtract it twice.
			if !s.discounted.CheckAndMark(m.ID) {
				subtracted++
			}
		}
	}

	s.messages = merged
	s.reindexLocked()
	s.unread[key] = 0
	s.unreadTotal = max(0, s.unreadTotal-subtracted)
	s.loadingMsgs = false
	s.stale = false
	if s.lastErr != nil && s.lastErr.Op == OpSelect {
		s.lastErr = nil
	}
	cached := slices.Clone(merged)
	s.mu.Unlock()

	s.logger.Debug("conversation selected", "key", key, "messages", len(merged), "marked_read", len(toMark))
	s.publish(Change{Kind: ChangeMessages, Key: key})
	s.publish(Change{Kind: ChangeUnread, Key: key})
	s.saveMessages(cached)

	s.markRead(ctx, toMark)
	return nil
}

func (s *Store) failSelect(ctx context.Context, key Key, gen uint64, err error) error {
	var cached []client.Message
	if s.cache != nil && !client.IsUnauthenticated(err) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
		cached, _ = s.cache.GetMessages(cctx, s.userID, key.PetID, key.PeerID)
		cancel()
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history error", "key", key, "error", err)
		return nil
	}
	s.loadingMsgs = false
	s.lastErr = &OpError{Op: OpSelect, Key: key, Err: err}
	if len(cached) > 0 && len(s.messages) == 0 {
		s.messages = cached
		s.reindexLocked()
		s.stale = true
	}
	s.mu.Unlock()

	s.logger.Warn("loading history failed", "key", key, "error", err)
	s.handleUnauthenticated(err)
	s.publish(Change{Kind: ChangeError, Key: key})
	if len(cached) > 0 {
		s.publish(Change{Kind: ChangeMessages, Key: key})
	}
	return err
}

// Send posts content to the active conversation. It is a no-op, returning
// (nil, nil), when content is blank, nothing is selected or another send is
// in flight. The server's echo is appended once; nothing is appended on
// failure.
func (s *Store) Send(ctx context.Context, content string) (*client.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.active == nil || s.sending {
		s.mu.Unlock()
		return nil, nil
	}
	key := *s.active
	s.sending = true
	s.mu.Unlock()
	s.publish(Change{Kind: ChangeSending, Key: key})

	msg, err := s.api.SendMessage(ctx, key.PetID, key.PeerID, content)

	s.mu.Lock()
	s.sending = false
	if err != nil {
		s.lastErr = &OpError{Op: OpSend, Key: key, Err: err}
		s.mu.Unlock()

		s.logger.Warn("sending message failed", "key", key, "error", err)
		s.handleUnauthenticated(err)
		s.publish(Change{Kind: ChangeSending, Key: key})
		s.publish(Change{Kind: ChangeError, Key: key})
		return nil, err
	}

	echo := *msg
	if echo.SenderID == 0 {
		echo.SenderID = s.userID
	}
	echo.Read = true
	s.counted.Mark(echo.ID)
	if s.lastErr != nil && s.lastErr.Op == OpSend {
		s.lastErr = nil
	}
	if s.active != nil && *s.active == key {
		s.appendLocked(echo)
	}
	s.touchConversationLocked(key, echo)
	s.mu.Unlock()

	s.publish(Change{Kind: ChangeSending, Key: key})
	s.publish(Change{Kind: ChangeMessages, Key: key})
	s.saveMessages([]client.Message{echo})
	return &echo, nil
}

// OnPush applies one inbound message from the live channel. A message for
// the active conversation is appended (once per id), read immediately and
// left out of the unread counters; one addressed to the viewer elsewhere
// bumps the unread counters exactly once.
func (s *Store) OnPush(ctx context.Context, msg client.Message) {
	if err := msg.Validate(); err != nil || !msg.Involves(s.userID) {
		s.logger.Debug("ignoring push", "message_id", msg.ID)
		return
	}
	key := KeyOf(msg, s.userID)
	toSelf := msg.ReceiverID == s.userID && !msg.Read

	var (
		markID   int64
		appended bool
		counted  bool
	)

	s.mu.Lock()
	if s.active != nil && *s.active == key {
		if toSelf {
			msg.Read = true
			if !s.counted.CheckAndMark(msg.ID) {
				markID = msg.ID
				s.discounted.Mark(msg.ID)
			}
		}
		appended = s.appendLocked(msg)
	} else if toSelf {
		if !s.counted.CheckAndMark(msg.ID) {
			s.unread[key]++
			s.unreadTotal++
			counted = true
		}
	}
	s.touchConversationLocked(key, msg)
	s.mu.Unlock()

	if !appended && !counted {
		s.logger.Debug("push caused no visible change", "message_id", msg.ID, "key", key)
	}

	msgCopy := msg
	s.publish(Change{Kind: ChangeIncoming, Key: key, Message: &msgCopy})
	if appended {
		s.publish(Change{Kind: ChangeMessages, Key: key})
	}
	if counted {
		s.publish(Change{Kind: ChangeUnread, Key: key})
	}

	s.saveMessages([]client.Message{msg})
	if markID != 0 {
		s.markRead(ctx, []int64{markID})
	}
}

// Run applies events until the channel closes or ctx ends.
func (s *Store) Run(ctx context.Context, events <-chan client.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			s.OnPush(ctx, msg)
		}
	}
}

// MarkRead marks one message of the active conversation as read. Repeating
// it for the same id changes nothing and is not an error.
func (s *Store) MarkRead(ctx context.Context, messageID int64) error {
	var changed bool
	s.mu.Lock()
	if idx, ok := s.msgIndex[messageID]; ok && s.active != nil {
		m := &s.messages[idx]
		if m.ReceiverID == s.userID && !m.Read {
			m.Read = true
			s.counted.Mark(messageID)
			if n := s.unread[*s.active]; n > 0 {
				s.unread[*s.active] = n - 1
			}
			if !s.discounted.CheckAndMark(messageID) {
				s.unreadTotal = max(0, s.unreadTotal-1)
			}
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.publish(Change{Kind: ChangeUnread})
	}
	if err := s.api.MarkRead(ctx, messageID); err != nil {
		s.handleUnauthenticated(err)
		return err
	}
	return nil
}

// SetRealtime records whether the live channel is connected.
func (s *Store) SetRealtime(connected bool) {
	s.mu.Lock()
	changed := s.realtime != connected
	s.realtime = connected
	s.mu.Unlock()

	if changed {
		s.publish(Change{Kind: ChangeRealtime})
	}
}

// Retry re-runs the operation behind the current error state. A failed
// send is not retried, since its content is gone; the error is cleared.
func (s *Store) Retry(ctx context.Context) error {
	s.mu.Lock()
	lastErr := s.lastErr
	if lastErr != nil && lastErr.Op == OpSend {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if lastErr == nil {
		return nil
	}
	switch lastErr.Op {
	case OpLoad:
		return s.LoadConversations(ctx)
	case OpSelect:
		return s.Select(ctx, lastErr.Key.PetID, lastErr.Key.PeerID)
	default:
		s.publish(Change{Kind: ChangeError})
		return nil
	}
}

// markRead issues read receipts in parallel. Failures are logged and
// dropped; the read flag is advisory.
func (s *Store) markRead(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.markReadLimit)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.api.MarkRead(ctx, id); err != nil {
				s.logger.Debug("mark read failed", "message_id", id, "error", err)
				s.handleUnauthenticated(err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// appendLocked inserts msg into the active list keeping timestamp order,
// after any messages with an equal timestamp. Returns false for a known id.
func (s *Store) appendLocked(msg client.Message) bool {
	if _, dup := s.msgIndex[msg.ID]; dup {
		return false
	}

	i := len(s.messages)
	for i > 0 && s.messages[i-1].Timestamp.After(msg.Timestamp.Time) {
		i--
	}
	s.messages = slices.Insert(s.messages, i, msg)
	if i == len(s.messages)-1 {
		s.msgIndex[msg.ID] = i
	} else {
		s.reindexLocked()
	}
	return true
}

func (s *Store) reindexLocked() {
	s.msgIndex = make(map[int64]int, len(s.messages))
	for i, m := range s.messages {
		s.msgIndex[m.ID] = i
	}
}

// touchConversationLocked refreshes the list preview for key in place.
func (s *Store) touchConversationLocked(key Key, msg client.Message) {
	for i := range s.convs {
		c := &s.convs[i]
		if KeyFor(*c) != key {
			continue
		}
		if !msg.Timestamp.Before(c.LastMessageTime.Time) {
			c.LastMessage = msg.Content
			c.LastMessageTime = msg.Timestamp
		}
		return
	}
}

func (s *Store) handleUnauthenticated(err error) {
	if client.IsUnauthenticated(err) && s.onUnauth != nil {
		s.onUnauth()
	}
}

func (s *Store) publish(change Change) {
	s.broadcaster.Publish(change)
}

func (s *Store) cachedConversations(ctx context.Context) *store.Snapshot {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheTimeout)
	defer cancel()

	snap, err := s.cache.GetConversations(cctx, s.userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("reading conversation cache failed", "error", err)
		}
		return nil
	}
	return snap
}

func (s *Store) saveConversations(convs []client.Conversation, total int) {
	if s.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.SaveConversations(ctx, s.userID, convs, total); err != nil {
		s.logger.Warn("caching conversations failed", "error", err)
	}
}

func (s *Store) saveMessages(msgs []client.Message) {
	if s.cache == nil || len(msgs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
	defer cancel()
	if err := s.cache.SaveMessages(ctx, s.userID, msgs); err != nil {
		s.logger.Warn("caching messages failed", "error", err)
	}
}

// uniqueConversations drops repeated keys, keeping the first occurrence.
func uniqueConversations(convs []client.Conversation) []client.Conversation {
	seen := make(map[Key]bool, len(convs))
	out := make([]client.Conversation, 0, len(convs))
	for _, c := range convs {
		k := KeyFor(c)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
