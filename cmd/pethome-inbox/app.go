// ABOUTME: Shared startup for subcommands: config, logging, session, REST client, cache
// ABOUTME: Resolves the current user before anything that needs a viewer id

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/pethome/pethome-inbox/internal/client"
	"github.com/pethome/pethome-inbox/internal/config"
	"github.com/pethome/pethome-inbox/internal/logging"
	"github.com/pethome/pethome-inbox/internal/session"
	"github.com/pethome/pethome-inbox/internal/store"
)

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *session.Session
	api     *client.Client
	cache   store.Store
	user    *client.User
}

// loadConfig reads the config file and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadOrDefault(config.Path())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := logging.Setup(cfg.Logging, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	sess, err := session.Load(cfg.Auth)
	if errors.Is(err, session.ErrNoToken) {
		return nil, fmt.Errorf("not logged in: run 'pethome-inbox login' or set %s", cfg.Auth.TokenEnv)
	}
	if err != nil {
		return nil, err
	}

	api, err := client.New(client.Options{
		BaseURL:           cfg.Server.BaseURL,
		Timeout:           cfg.Server.RequestTimeout,
		Tokens:            sess,
		Logger:            logger,
		OnUnauthenticated: sess.Teardown,
	})
	if err != nil {
		return nil, err
	}

	user, err := api.Me(ctx)
	if err != nil {
		if client.IsUnauthenticated(err) {
			return nil, fmt.Errorf("session expired: run 'pethome-inbox login' again")
		}
		return nil, fmt.Errorf("resolving current user: %w", err)
	}
	sess.SetUser(user)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		session: sess,
		api:     api,
		user:    user,
	}

	if cfg.Cache.Enabled {
		cache, err := store.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			// The cache only backs offline views
			logger.Warn("snapshot cache unavailable", "path", cfg.Cache.Path, "error", err)
		} else {
			a.cache = cache
		}
	}

	logger.Debug("session ready", "user_id", user.ID, "email", user.Email)
	return a, nil
}

func (a *app) Close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing cache", "error", err)
		}
	}
}

// withApp runs fn with a fully initialized app.
func withApp(ctx context.Context, fn func(*app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
