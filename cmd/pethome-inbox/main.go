// ABOUTME: Terminal client for pet-adoption conversations: inbox, chat, favorites, export
// ABOUTME: Subcommand dispatch, banner and usage; the chat REPL lives in chat.go

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
)

const banner = `
            _   _                              _       _
 _ __   ___| |_| |__   ___  _ __ ___   ___    (_)_ __ | |__   _____  __
| '_ \ / _ \ __| '_ \ / _ \| '_ ' _ \ / _ \___| | '_ \| '_ \ / _ \ \/ /
| |_) |  __/ |_| | | | (_) | | | | | |  __/___| | | | | |_) | (_) >  <
| .__/ \___|\__|_| |_|\___/|_| |_| |_|\___|   |_|_| |_|_.__/ \___/_/\_\
|_|
`

func main() {
	// .env is optional; it only seeds variables for ${VAR} expansion
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: reading .env: %v\n", err)
	}

	cmd := "chat"
	var args []string
	if len(os.Args) > 1 {
		cmd = os.Args[1]
		args = os.Args[2:]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch cmd {
	case "chat":
		err = withApp(ctx, func(a *app) error { return cmdChat(ctx, a) })
	case "unread":
		err = withApp(ctx, func(a *app) error { return cmdUnread(ctx, a) })
	case "favorites", "fav":
		err = withApp(ctx, func(a *app) error { return cmdFavorites(ctx, a, args) })
	case "export":
		err = withApp(ctx, func(a *app) error { return cmdExport(ctx, a, args) })
	case "login":
		err = cmdLogin(ctx, args)
	case "logout":
		err = cmdLogout(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: pethome-inbox [command] [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  chat                        Interactive inbox with live updates (default)")
	fmt.Println("  unread                      Show unread message counts")
	fmt.Println("  favorites                   List favorite pets")
	fmt.Println("  favorites add <pet-id>      Add a pet to favorites")
	fmt.Println("  favorites remove <pet-id>   Remove a pet from favorites")
	fmt.Println("  favorites status <pet-id>   Check whether a pet is a favorite")
	fmt.Println("  export <pet> <peer> [file]  Write a conversation as HTML (stdout if no file)")
	fmt.Println("  login [email]               Log in and store the token")
	fmt.Println("  logout                      Remove the stored token and cached data")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  PETHOME_TOKEN               Bearer token (overrides the token file)")
	fmt.Println("  PETHOME_PASSWORD            Password for non-interactive login")
	fmt.Println("  PETHOME_CONFIG              Config file (default: ~/.config/pethome/inbox.yaml)")
	fmt.Println()
}
