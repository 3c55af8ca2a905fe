// ABOUTME: Matrix relay core: posts inbound pet-adoption messages to a room
// ABOUTME: and turns "!reply PET PEER text" commands from that room into sends

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/conversation"
)

// networkTimeout is the timeout for Matrix API calls.
const networkTimeout = 10 * time.Second

// roomPoster is the part of *mautrix.Client used to post into the room.
type roomPoster interface {
	SendText(ctx context.Context, roomID id.RoomID, text string) (*mautrix.RespSendEvent, error)
}

// messageSender is the part of the REST client used by !reply.
type messageSender interface {
	SendMessage(ctx context.Context, petID, receiverID int64, content string) (*client.Message, error)
}

// Bridge connects one Matrix room to one pethome inbox.
type Bridge struct {
	config *Config
	matrix *mautrix.Client
	poster roomPoster
	api    messageSender
	store  *conversation.Store
	logger *slog.Logger

	self   id.UserID
	roomID id.RoomID
	userID int64

	// ctx is the parent context for command goroutines
	ctx context.Context
}

// NewBridge creates a relay for the inbox behind store.
func NewBridge(cfg *Config, matrix *mautrix.Client, api messageSender, store *conversation.Store, logger *slog.Logger) *Bridge {
	b := &Bridge{
		config: cfg,
		matrix: matrix,
		api:    api,
		store:  store,
		logger: logger.With("component", "matrix"),
		self:   id.UserID(cfg.Matrix.UserID),
		roomID: id.RoomID(cfg.Matrix.RoomID),
		userID: store.UserID(),
		ctx:    context.Background(),
	}
	if matrix != nil {
		b.poster = matrix
	}
	return b
}

// Run syncs with the homeserver and relays store changes until ctx ends or
// either side fails.
func (b *Bridge) Run(ctx context.Context, events <-chan client.Message) error {
	b.logger.Info("starting matrix relay",
		"homeserver", b.config.Matrix.Homeserver,
		"room", b.roomID,
		"pethome_user", b.userID,
	)

	g, ctx := errgroup.WithContext(ctx)
	b.ctx = ctx

	syncer, ok := b.matrix.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", b.matrix.Syncer)
	}
	// Commands sent while the relay was down are not replayed
	syncer.OnSync(b.matrix.DontProcessOldEvents)
	syncer.OnEventType(event.EventMessage, b.handleMessageEvent)

	changes, _ := b.store.Subscribe(ctx)

	g.Go(func() error {
		if err := b.matrix.SyncWithContext(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("matrix sync failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := b.store.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		b.relay(ctx, changes)
		return nil
	})

	b.logger.Info("matrix relay running")
	err := g.Wait()
	b.logger.Info("matrix relay stopped")
	return err
}

// relay posts every unseen inbound message addressed to the inbox owner.
func (b *Bridge) relay(ctx context.Context, changes <-chan conversation.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Kind != conversation.ChangeIncoming || change.Message == nil {
				continue
			}
			msg := *change.Message
			if msg.ReceiverID != b.userID {
				continue
			}
			snap := b.store.Snapshot()
			b.sendMessage(ctx, formatIncoming(msg, snap.Unread(change.Key), b.config.Bridge.CommandPrefix))
		}
	}
}

// handleMessageEvent processes incoming Matrix messages.
func (b *Bridge) handleMessageEvent(ctx context.Context, evt *event.Event) {
	if evt.Sender == b.self || evt.RoomID != b.roomID {
		return
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}

	body := strings.TrimSpace(content.Body)
	if !strings.HasPrefix(body, b.config.Bridge.CommandPrefix) {
		return
	}
	if !b.isSenderAllowed(evt.Sender) {
		b.logger.Debug("ignoring command from non-allowed sender", "sender", evt.Sender)
		return
	}
	body = strings.TrimSpace(strings.TrimPrefix(body, b.config.Bridge.CommandPrefix))

	b.logger.Info("received command", "sender", evt.Sender.String(), "command", truncate(body, 50))

	// Replies go out on the bridge context so sync is never blocked
	go func() {
		if reply := b.handleCommand(b.ctx, body); reply != "" {
			b.sendMessage(b.ctx, reply)
		}
	}()
}

// handleCommand runs one command (prefix already stripped) and returns the
// text to post back.
func (b *Bridge) handleCommand(ctx context.Context, body string) string {
	name, rest, _ := strings.Cut(body, " ")
	prefix := b.config.Bridge.CommandPrefix

	switch strings.ToLower(name) {
	case "reply", "r":
		petID, peerID, text, err := parseReply(rest)
		if err != nil {
			return fmt.Sprintf("Error: %v. Usage: %sreply PET PEER text", err, prefix)
		}
		msg, err := b.api.SendMessage(ctx, petID, peerID, text)
		if err != nil {
			b.logger.Warn("relayed send failed", "pet_id", petID, "peer_id", peerID, "error", err)
			return fmt.Sprintf("Error: %v", err)
		}
		// Keep the inbox state in step with what was sent
		b.store.OnPush(ctx, *msg)
		return fmt.Sprintf("Sent to #%d about pet #%d.", peerID, petID)
	case "unread":
		return formatUnread(b.store.Snapshot())
	case "help":
		return fmt.Sprintf("Commands: %sreply PET PEER text, %sunread, %shelp", prefix, prefix, prefix)
	default:
		return fmt.Sprintf("Unknown command %q. Try %shelp", name, prefix)
	}
}

// parseReply splits "PET PEER text" into its parts.
func parseReply(s string) (petID, peerID int64, text string, err error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return 0, 0, "", errors.New("missing arguments")
	}
	petID, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil || petID <= 0 {
		return 0, 0, "", fmt.Errorf("invalid pet id %q", fields[0])
	}
	peerID, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil || peerID <= 0 {
		return 0, 0, "", fmt.Errorf("invalid peer id %q", fields[1])
	}
	// Keep the message text as typed, minus the two id fields
	return petID, peerID, dropField(dropField(s)), nil
}

// dropField removes the first whitespace-separated field of s.
func dropField(s string) string {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return strings.TrimSpace(s[i:])
	}
	return ""
}

func formatIncoming(msg client.Message, unread int, prefix string) string {
	sender := msg.SenderName
	if sender == "" {
		sender = fmt.Sprintf("#%d", msg.SenderID)
	}
	pet := msg.PetName
	if pet == "" {
		pet = fmt.Sprintf("#%d", msg.PetID)
	}
	return fmt.Sprintf("%s about %s (%d unread): %s\nReply with: %sreply %d %d ...",
		sender, pet, unread, msg.Content, prefix, msg.PetID, msg.SenderID)
}

func formatUnread(snap conversation.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Unread total: %d", snap.UnreadTotal)
	for _, c := range snap.Conversations {
		key := conversation.KeyFor(c)
		if n := snap.Unread(key); n > 0 {
			fmt.Fprintf(&sb, "\n%s about %s: %d (pet %d, peer %d)", c.OtherUserName, c.PetName, n, key.PetID, key.PeerID)
		}
	}
	return sb.String()
}

// isSenderAllowed checks the sender against the allow list.
func (b *Bridge) isSenderAllowed(sender id.UserID) bool {
	if len(b.config.Bridge.AllowedSenders) == 0 {
		return true
	}
	return slices.Contains(b.config.Bridge.AllowedSenders, sender.String())
}

// sendMessage posts text to the relay room.
func (b *Bridge) sendMessage(ctx context.Context, text string) {
	ctx, cancel := context.WithTimeout(ctx, networkTimeout)
	defer cancel()
	if _, err := b.poster.SendText(ctx, b.roomID, text); err != nil {
		b.logger.Error("failed to send message", "room", b.roomID.String(), "error", err)
	}
}

// truncate shortens a string to the given max rune count, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
