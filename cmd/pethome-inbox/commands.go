// ABOUTME: One-shot subcommands: unread, favorites, export, login, logout
// ABOUTME: Each runs a single REST round trip and prints the result

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/conversation"
	"github.com/pethome/pethome-inbox/internal/session"
	"github.com/pethome/pethome-inbox/internal/store"
	"github.com/pethome/pethome-inbox/internal/transcript"
)

const passwordEnv = "PETHOME_PASSWORD"

func cmdUnread(ctx context.Context, a *app) error {
	st, err := conversation.New(conversation.Options{
		API:    a.api,
		UserID: a.user.ID,
		Cache:  a.cache,
		Logger: a.logger,
		// Listing counts must not open (and mark read) a conversation
		NoAutoSelect: true,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.LoadConversations(ctx); err != nil && !st.Snapshot().Stale {
		return err
	}
	newView(os.Stdout, a.user.ID).conversations(st.Snapshot())
	return nil
}

func cmdFavorites(ctx context.Context, a *app, args []string) error {
	v := newView(os.Stdout, a.user.ID)
	if len(args) == 0 || args[0] == "list" {
		return printFavorites(ctx, a, v)
	}
	if len(args) != 2 {
		return errors.New("usage: favorites [list|add|remove|status] <pet-id>")
	}
	petID, err := parseID(args[1], "pet")
	if err != nil {
		return err
	}

	switch args[0] {
	case "add":
		if err := a.api.AddFavorite(ctx, petID); err != nil {
			return err
		}
		color.Green("Pet %d added to favorites\n", petID)
	case "remove", "rm":
		if err := a.api.RemoveFavorite(ctx, petID); err != nil {
			return err
		}
		color.Green("Pet %d removed from favorites\n", petID)
	case "status":
		fav, err := a.api.FavoriteStatus(ctx, petID)
		if err != nil {
			return err
		}
		if fav {
			fmt.Printf("Pet %d is a favorite\n", petID)
		} else {
			fmt.Printf("Pet %d is not a favorite\n", petID)
		}
	default:
		return fmt.Errorf("unknown favorites action %q", args[0])
	}
	return nil
}

func printFavorites(ctx context.Context, a *app, v *view) error {
	pets, err := a.api.ListFavorites(ctx)
	if err != nil {
		return err
	}
	if len(pets) == 0 {
		v.notice("No favorite pets yet.")
		return nil
	}
	for _, p := range pets {
		details := make([]string, 0, 3)
		for _, s := range []string{p.Specie, p.Breed, p.Location} {
			if s != "" {
				details = append(details, s)
			}
		}
		v.printf("%6d  %s", p.ID, displayName(p.PetName, p.ID))
		if len(details) > 0 {
			v.printf("  (%s)", strings.Join(details, ", "))
		}
		v.printf("\n")
	}
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return errors.New("usage: export <pet-id> <peer-id> [file]")
	}
	key, err := resolveOpen(args[:2], conversation.Snapshot{})
	if err != nil {
		return err
	}
	path := ""
	if len(args) == 3 {
		path = args[2]
	}
	return exportTo(ctx, a, key, path)
}

// exportTo renders one conversation to path, or stdout when path is empty.
func exportTo(ctx context.Context, a *app, key conversation.Key, path string) error {
	msgs, err := a.api.History(ctx, key.PetID, a.user.ID, key.PeerID)
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}
	client.SortMessages(msgs)

	conv := transcript.Conversation{
		ViewerID:   a.user.ID,
		ViewerName: a.user.Name,
		Messages:   msgs,
	}
	for _, m := range msgs {
		if conv.PetName == "" && m.PetName != "" {
			conv.PetName = m.PetName
		}
		if conv.PeerName == "" {
			if m.SenderID == key.PeerID && m.SenderName != "" {
				conv.PeerName = m.SenderName
			} else if m.ReceiverID == key.PeerID && m.ReceiverName != "" {
				conv.PeerName = m.ReceiverName
			}
		}
	}
	if conv.PetName == "" {
		conv.PetName = displayName("", key.PetID)
	}
	if conv.PeerName == "" {
		conv.PeerName = displayName("", key.PeerID)
	}

	if path == "" {
		return transcript.New().Render(os.Stdout, conv)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := transcript.New().Render(f, conv); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func cmdLogin(ctx context.Context, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	in := bufio.NewReader(os.Stdin)
	email := ""
	if len(args) > 0 {
		email = args[0]
	} else {
		fmt.Print("Email: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	password := os.Getenv(passwordEnv)
	if password == "" {
		password, err = readPassword(in)
		if err != nil {
			return err
		}
	}

	api, err := client.New(client.Options{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.RequestTimeout,
		Tokens:  session.New("", ""),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	result, err := api.Login(ctx, email, password)
	if err != nil {
		var verr *client.ValidationError
		if errors.As(err, &verr) {
			return errors.New("login failed: wrong email or password")
		}
		return err
	}
	if err := session.Save(cfg.Auth.TokenPath, result.JWT); err != nil {
		return err
	}

	color.Green("Logged in as %s (id %d)\n", result.Email, result.UserID)
	fmt.Printf("Token saved to %s\n", cfg.Auth.TokenPath)
	if os.Getenv(cfg.Auth.TokenEnv) != "" {
		color.Yellow("Note: %s is set and takes precedence over the saved token\n", cfg.Auth.TokenEnv)
	}
	return nil
}

func readPassword(in *bufio.Reader) (string, error) {
	fmt.Print("Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// cmdLogout removes the saved token and this user's cached snapshot. It
// works without network access.
func cmdLogout(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	sess, err := session.Load(cfg.Auth)
	if errors.Is(err, session.ErrNoToken) {
		fmt.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return err
	}

	if cfg.Cache.Enabled {
		if err := clearCache(ctx, cfg.Cache.Path, sess); err != nil {
			logger.Warn("clearing cache", "error", err)
		}
	}

	sess.Teardown()
	color.Green("Logged out\n")
	if os.Getenv(cfg.Auth.TokenEnv) != "" {
		color.Yellow("Note: %s is still set in the environment\n", cfg.Auth.TokenEnv)
	}
	return nil
}

func clearCache(ctx context.Context, path string, sess *session.Session) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	claims, err := sess.Claims()
	if err != nil {
		return err
	}
	userID, err := parseID(claims.Subject, "user")
	if err != nil {
		// The subject is usually the email; without an id drop the whole cache
		for _, p := range []string{path, path + "-wal", path + "-shm"} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
		}
		return nil
	}
	cache, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer cache.Close()
	return cache.Clear(ctx, userID)
}
