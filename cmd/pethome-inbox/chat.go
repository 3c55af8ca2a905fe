// ABOUTME: Interactive inbox: conversation store, live channel and a line-based REPL
// ABOUTME: Plain lines are sent to the open conversation; slash commands drive everything else

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/conversation"
	"github.com/pethome/pethome-inbox/internal/live"
)

func cmdChat(ctx context.Context, a *app) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// A 401 anywhere ends the chat
	a.session.OnTeardown(cancel)

	v := newView(os.Stdout, a.user.ID)

	st, err := conversation.New(conversation.Options{
		API:               a.api,
		UserID:            a.user.ID,
		Cache:             a.cache,
		Logger:            a.logger,
		OnUnauthenticated: a.session.Teardown,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	ch, err := live.New(live.Options{
		BaseURL: a.api.BaseURL(),
		UserID:  a.user.ID,
		Tokens:  a.session,
		Backoff: live.BackoffFromConfig(a.cfg.Live),
		Logger:  a.logger,
		OnState: func(state live.State, err error) {
			st.SetRealtime(state == live.Open)
		},
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	changes, _ := st.Subscribe(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(st.Run(gctx, ch.Events()))
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-ch.Done():
		}
		if err := ch.Err(); err != nil {
			if client.IsUnauthenticated(err) {
				a.session.Teardown()
				return errors.New("session expired: run 'pethome-inbox login' again")
			}
			return err
		}
		return nil
	})
	g.Go(func() error {
		watchChanges(gctx, st, v, changes)
		return nil
	})

	if err := ch.Start(gctx); err != nil {
		return err
	}

	if err := st.LoadConversations(gctx); err != nil {
		v.errorf("loading conversations: %v", err)
	}
	v.conversations(st.Snapshot())
	if snap := st.Snapshot(); snap.Active != nil {
		v.messages(snap)
	}
	v.notice("Type /help for commands.")

	r := &repl{app: a, store: st, view: v}
	replErr := r.run(gctx, os.Stdin)

	cancel()
	ch.Close()
	if err := g.Wait(); err != nil {
		return err
	}
	if !a.session.Active() {
		return errors.New("session expired: run 'pethome-inbox login' again")
	}
	return replErr
}

// watchChanges prints pushes as they arrive.
func watchChanges(ctx context.Context, st *conversation.Store, v *view, changes <-chan conversation.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			switch change.Kind {
			case conversation.ChangeIncoming:
				if change.Message == nil {
					continue
				}
				snap := st.Snapshot()
				msg := *change.Message
				if snap.Active != nil && *snap.Active == change.Key {
					// Own messages are already printed by the send path
					if msg.SenderID != v.viewerID {
						v.message(msg)
					}
				} else if msg.ReceiverID == v.viewerID {
					v.notify(msg, snap.Unread(change.Key))
				}
			case conversation.ChangeRealtime:
				if st.Snapshot().Realtime {
					v.notice("Live updates connected.")
				} else {
					v.notice("Live updates lost, reconnecting...")
				}
			}
		}
	}
}

type repl struct {
	app   *app
	store *conversation.Store
	view  *view
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		r.prompt()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-lines:
		}

		cmd, args := parseCommand(input)
		if cmd == "" && len(args) == 0 {
			continue
		}
		if cmd == "quit" {
			return nil
		}
		r.dispatch(ctx, cmd, args, input)
	}
}

func (r *repl) prompt() {
	snap := r.store.Snapshot()
	label := ""
	if snap.Active != nil {
		for _, c := range snap.Conversations {
			if conversation.KeyFor(c) == *snap.Active {
				label = displayName(c.OtherUserName, c.OtherUserID) + "/" + displayName(c.PetName, c.PetID)
				break
			}
		}
		if label == "" {
			label = snap.Active.String()
		}
	}
	if label != "" {
		r.view.printf("[%s]> ", label)
	} else {
		r.view.printf("> ")
	}
}

func (r *repl) dispatch(ctx context.Context, cmd string, args []string, input string) {
	switch cmd {
	case "":
		r.send(ctx, input)
	case "list", "ls":
		r.view.conversations(r.store.Snapshot())
	case "open", "o":
		key, err := resolveOpen(args, r.store.Snapshot())
		if err != nil {
			r.view.errorf("%v", err)
			return
		}
		if err := r.store.Select(ctx, key.PetID, key.PeerID); err != nil {
			r.view.errorf("loading messages: %v", err)
		}
		r.view.messages(r.store.Snapshot())
	case "history", "h":
		r.view.messages(r.store.Snapshot())
	case "unread":
		r.view.conversations(r.store.Snapshot())
	case "refresh":
		if err := r.store.LoadConversations(ctx); err != nil {
			r.view.errorf("loading conversations: %v", err)
		}
		r.view.conversations(r.store.Snapshot())
	case "retry":
		if err := r.store.Retry(ctx); err != nil {
			r.view.errorf("%v", err)
			return
		}
		r.view.notice("Done.")
	case "fav", "unfav":
		r.favorite(ctx, cmd == "fav", args)
	case "favorites":
		if err := printFavorites(ctx, r.app, r.view); err != nil {
			r.view.errorf("%v", err)
		}
	case "export":
		r.export(ctx, args)
	case "status":
		r.view.status(r.store.Snapshot(), r.app.session.User())
	case "help", "?":
		printChatHelp(r.view)
	default:
		r.view.errorf("unknown command /%s (try /help)", cmd)
	}
}

func (r *repl) send(ctx context.Context, content string) {
	snap := r.store.Snapshot()
	if snap.Active == nil {
		r.view.errorf("no conversation open: use /open <n> first")
		return
	}
	if snap.Sending {
		r.view.notice("Still sending the previous message.")
		return
	}
	msg, err := r.store.Send(ctx, content)
	if err != nil {
		r.view.errorf("sending: %v", err)
		return
	}
	if msg != nil {
		r.view.message(*msg)
	}
}

// favorite toggles the pet of the open conversation, or the pet id given.
func (r *repl) favorite(ctx context.Context, add bool, args []string) {
	petID, err := petArg(args, r.store.Snapshot())
	if err != nil {
		r.view.errorf("%v", err)
		return
	}
	if add {
		err = r.app.api.AddFavorite(ctx, petID)
	} else {
		err = r.app.api.RemoveFavorite(ctx, petID)
	}
	if err != nil {
		r.view.errorf("%v", err)
		return
	}
	if add {
		r.view.notice("Pet %d added to favorites.", petID)
	} else {
		r.view.notice("Pet %d removed from favorites.", petID)
	}
}

func (r *repl) export(ctx context.Context, args []string) {
	snap := r.store.Snapshot()
	if snap.Active == nil {
		r.view.errorf("no conversation open")
		return
	}
	if len(args) != 1 {
		r.view.errorf("usage: /export <file>")
		return
	}
	if err := exportTo(ctx, r.app, *snap.Active, args[0]); err != nil {
		r.view.errorf("%v", err)
		return
	}
	r.view.notice("Wrote %s.", args[0])
}

// parseCommand splits a slash command into name and arguments. Plain text
// yields an empty name and the text as a single argument.
func parseCommand(input string) (string, []string) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}
	if !strings.HasPrefix(input, "/") {
		return "", []string{input}
	}
	fields := strings.Fields(input[1:])
	if len(fields) == 0 {
		return "", []string{input}
	}
	name := strings.ToLower(fields[0])
	if name == "exit" || name == "q" {
		name = "quit"
	}
	return name, fields[1:]
}

// resolveOpen accepts a list position (1-based) or an explicit pet and peer id.
func resolveOpen(args []string, snap conversation.Snapshot) (conversation.Key, error) {
	switch len(args) {
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > len(snap.Conversations) {
			return conversation.Key{}, fmt.Errorf("no conversation %q (have %d)", args[0], len(snap.Conversations))
		}
		return conversation.KeyFor(snap.Conversations[n-1]), nil
	case 2:
		petID, err := parseID(args[0], "pet")
		if err != nil {
			return conversation.Key{}, err
		}
		peerID, err := parseID(args[1], "peer")
		if err != nil {
			return conversation.Key{}, err
		}
		return conversation.Key{PetID: petID, PeerID: peerID}, nil
	default:
		return conversation.Key{}, errors.New("usage: /open <n> or /open <pet-id> <peer-id>")
	}
}

// petArg returns the pet id argument, defaulting to the open conversation's pet.
func petArg(args []string, snap conversation.Snapshot) (int64, error) {
	if len(args) > 0 {
		return parseID(args[0], "pet")
	}
	if snap.Active == nil {
		return 0, errors.New("give a pet id or open a conversation first")
	}
	return snap.Active.PetID, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printChatHelp(v *view) {
	v.printf("%s", `Commands:
  /list                  Show conversations with unread counts
  /open <n>              Open conversation n from /list
  /open <pet> <peer>     Open a conversation by ids
  /history               Reprint the open conversation
  /refresh               Reload conversations from the server
  /retry                 Retry the last failed load
  /fav [pet]             Add a pet to favorites (default: open conversation)
  /unfav [pet]           Remove a pet from favorites
  /favorites             List favorite pets
  /export <file>         Save the open conversation as HTML
  /status                Show connection and session state
  /help                  Show this help
  /quit                  Exit
Anything else is sent to the open conversation.
`)
}
