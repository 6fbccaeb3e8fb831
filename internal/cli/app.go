// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Per-invocation wiring of config, storage, client and session.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jeranaias/crcafe-cli/internal/apiclient"
	"github.com/jeranaias/crcafe-cli/internal/config"
	"github.com/jeranaias/crcafe-cli/internal/logging"
	"github.com/jeranaias/crcafe-cli/internal/pos"
	"github.com/jeranaias/crcafe-cli/internal/session"
	"github.com/jeranaias/crcafe-cli/internal/storage"
)

// App is everything a command needs. It is built once per invocation.
type App struct {
	cfg       *config.Config
	log       zerolog.Logger
	store     storage.Store
	storePath string
	creds     *storage.SessionStore
	client    *apiclient.Client
	session   *session.Manager
	pos       *pos.Service
	out       *output
}

// newApp builds the App for cfg and restores the persisted session.
func newApp(ctx context.Context, cfg *config.Config, out *output) (*App, error) {
	log := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Out:    out.errOut,
	})

	storePath, err := cfg.StorePath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	keyPath := ""
	if cfg.Storage.Encrypt {
		if keyPath, err = cfg.KeyPath(); err != nil {
			return nil, &ConfigError{Err: err}
		}
	}

	store, err := storage.Open(storage.Options{
		Backend: cfg.Storage.Backend,
		Path:    storePath,
		Encrypt: cfg.Storage.Encrypt,
		KeyPath: keyPath,
		Logger:  &log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	creds := storage.NewSessionStore(store)

	client := apiclient.New(cfg.API.BaseURL, creds).
		WithLogger(log).
		WithTimeout(time.Duration(cfg.API.TimeoutSecs)*time.Second).
		WithRateLimit(cfg.API.RequestsPerSecond, cfg.API.Burst).
		WithCircuitBreaker(cfg.API.BreakerEnabled)

	mgr := session.NewManager(session.Config{
		IdleTimeout:       cfg.Session.IdleTimeout(),
		IdleCheckInterval: cfg.Session.IdleCheckInterval(),
		LogoutTimeout:     session.DefaultConfig().LogoutTimeout,
	}, creds, client).
		WithLogger(log).
		WithNotifier(session.NotifierFunc(func(msg string) { out.notice("%s", msg) })).
		WithNavigator(session.NavigatorFunc(func() {
			out.warn("Session ended. Run 'crcafe auth login' to sign in again.")
		}))

	if err := mgr.Init(ctx); err != nil {
		mgr.Close()
		store.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	svc := pos.NewService(client).
		WithLogger(log).
		WithMenuTTL(time.Duration(cfg.Cache.MenuTTLSecs) * time.Second)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     store,
		storePath: storePath,
		creds:     creds,
		client:    client,
		session:   mgr,
		pos:       svc,
		out:       out,
	}, nil
}

// requireSession returns the live session or session.ErrNotLoggedIn.
func (a *App) requireSession() (session.Session, error) {
	return a.session.RequireSession()
}

// Close stops the session manager and releases the store.
func (a *App) Close() error {
	a.session.Close()
	return a.store.Close()
}
