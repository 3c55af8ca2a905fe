// ABOUTME: Entry point for the pethome Matrix relay
// ABOUTME: Wires session, REST client, live channel and conversation store to a Matrix room

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/config"
	"github.com/pethome/pethome-inbox/internal/conversation"
	"github.com/pethome/pethome-inbox/internal/live"
	"github.com/pethome/pethome-inbox/internal/logging"
	"github.com/pethome/pethome-inbox/internal/session"
)

const banner = `
    ╭──────────────────────────────────╮
    │                                  │
    │      pethome  ·  matrix relay    │
    │                                  │
    ╰──────────────────────────────────╯
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading .env: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	path := configPath()
	cfg, err := Load(path)
	if err != nil {
		return fmt.Errorf("loading config from %s: %w", path, err)
	}

	logger := logging.Setup(config.LoggingConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format}, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:     %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("Homeserver: %s\n", cfg.Matrix.Homeserver)
	green.Print("    ▶ ")
	fmt.Printf("Room:       %s\n", cfg.Matrix.RoomID)
	green.Print("    ▶ ")
	fmt.Printf("Backend:    %s\n", cfg.Pethome.BaseURL)
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess := session.New(cfg.Pethome.Token, "")
	// A rejected token stops the relay
	sess.OnTeardown(cancel)

	api, err := client.New(client.Options{
		BaseURL:           cfg.Pethome.BaseURL,
		Tokens:            sess,
		Logger:            logger,
		OnUnauthenticated: sess.Teardown,
	})
	if err != nil {
		return err
	}

	user, err := api.Me(ctx)
	if err != nil {
		return fmt.Errorf("resolving pethome user: %w", err)
	}
	sess.SetUser(user)

	st, err := conversation.New(conversation.Options{
		API:               api,
		UserID:            user.ID,
		Logger:            logger,
		OnUnauthenticated: sess.Teardown,
		NoAutoSelect:      true,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.LoadConversations(ctx); err != nil {
		logger.Warn("initial conversation load failed", "error", err)
	}

	ch, err := live.New(live.Options{
		BaseURL: api.BaseURL(),
		UserID:  user.ID,
		Tokens:  sess,
		Backoff: live.FixedBackoff(config.DefaultReconnectDelay),
		Logger:  logger,
		OnState: func(state live.State, err error) {
			st.SetRealtime(state == live.Open)
			if client.IsUnauthenticated(err) {
				sess.Teardown()
			}
		},
	})
	if err != nil {
		return err
	}
	defer ch.Close()

	mx, err := mautrix.NewClient(cfg.Matrix.Homeserver, id.UserID(cfg.Matrix.UserID), cfg.Matrix.AccessToken)
	if err != nil {
		return fmt.Errorf("creating matrix client: %w", err)
	}

	if err := ch.Start(ctx); err != nil {
		return err
	}

	bridge := NewBridge(cfg, mx, api, st, logger)
	if err := bridge.Run(ctx, ch.Events()); err != nil {
		return err
	}
	if !sess.Active() {
		return errors.New("pethome token was rejected")
	}
	return nil
}
