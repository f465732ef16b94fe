package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/user/mayberry/internal/config"
	"github.com/user/mayberry/internal/delivery"
	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/session"
	"github.com/user/mayberry/internal/state"
	"github.com/user/mayberry/internal/telegram"
)

// app holds the wired client stack for one command invocation.
type app struct {
	cfg         *config.Config
	gw          *gateway.Gateway
	client      *gateway.Client
	session     *session.Manager
	transcripts *state.TranscriptStore
	exports     *state.ExportStore
	delivery    *delivery.Registry
	escalator   *delivery.Escalator
}

// escalationTimeout bounds the delivery of one emergency notice.
const escalationTimeout = 15 * time.Second

var errNotLoggedIn = errors.New("not logged in; run 'mayberry login' first")

func newApp() (*app, error) {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	gw := gateway.New(cfg.API.BaseURL, gateway.WithLogger(slog.Default()))
	client := gateway.NewClient(gw)
	mgr := session.New(client, state.NewCredentialStore(cfg.DataDir), slog.Default())
	gw.Bind(mgr)

	a := &app{
		cfg:         cfg,
		gw:          gw,
		client:      client,
		session:     mgr,
		transcripts: state.NewTranscriptStore(cfg.DataDir),
		exports:     state.NewExportStore(cfg.DataDir),
		delivery:    delivery.NewRegistry(),
	}
	if err := a.registerTargets(); err != nil {
		return nil, err
	}
	a.escalator = a.delivery.Escalator(cfg.Escalation.Targets, escalationTimeout, slog.Default())
	return a, nil
}

func (a *app) registerTargets() error {
	a.delivery.Register("log", delivery.LogHandler(slog.Default()))

	if a.cfg.Telegram.Token == "" {
		for _, t := range a.cfg.Escalation.Targets {
			if _, err := telegram.ParseTarget(t); err == nil {
				slog.Warn("telegram escalation target configured without a bot token", "target", t)
			}
		}
		return nil
	}
	notifier, err := telegram.New(a.cfg.Telegram.Token, slog.Default())
	if err != nil {
		return fmt.Errorf("telegram notifier: %w", err)
	}
	a.delivery.Register(telegram.Prefix, notifier.Deliver)
	return nil
}

// authenticated restores the stored credential and fails if there is none.
func (a *app) authenticated(ctx context.Context) error {
	if err := a.session.Restore(ctx); err != nil {
		slog.Debug("restore failed", "error", err)
	}
	if a.session.Current().Status != session.Authenticated {
		return errNotLoggedIn
	}
	return nil
}
