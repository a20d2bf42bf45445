// Package client assembles the device-side application: remote client,
// local mirror, sync engine and live notification channel, plus session
// persistence so the CLI stays signed in between invocations.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"flocksync/internal/app/client/config"
	"flocksync/internal/domain"
	"flocksync/internal/mirror"
	"flocksync/internal/notify"
	"flocksync/internal/remote"
	"flocksync/internal/syncer"
)

var ErrNotSignedIn = errors.New("client: not signed in")

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	remote   *remote.Client
	store    *mirror.Store
	registry *notify.Registry

	syncer  *syncer.Syncer
	session *domain.Session
}

func New(cfg *config.Config, log *zap.Logger, alert notify.Alerter) (*App, error) {
	rc := remote.New(cfg.ServerURL, log)

	store, err := mirror.Open(cfg.MirrorDSN, log)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}

	app := &App{
		cfg:      cfg,
		log:      log,
		remote:   rc,
		store:    store,
		registry: notify.NewRegistry(notify.WrapClient(rc), alert, log),
	}

	// A saved session makes the app usable offline straight away.
	if err := app.restoreSession(); err != nil {
		log.Warn("could not restore saved session", zap.Error(err))
	}
	return app, nil
}

func (a *App) Close() error {
	a.registry.CloseAll()
	return a.store.Close()
}

func (a *App) SignedIn() bool { return a.session != nil }

func (a *App) Profile() (domain.Profile, error) {
	if a.session == nil {
		return domain.Profile{}, ErrNotSignedIn
	}
	return a.session.Profile, nil
}

func (a *App) Store() *mirror.Store { return a.store }

func (a *App) Remote() *remote.Client { return a.remote }

// Login authenticates against the backend and persists the session so later
// invocations and offline reads keep working.
func (a *App) Login(ctx context.Context, email, password string) (*domain.Profile, error) {
	session, err := a.remote.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.adoptSession(session)
	if err := a.saveSession(session); err != nil {
		a.log.Warn("could not persist session", zap.Error(err))
	}
	return &session.Profile, nil
}

// Logout invalidates the token remotely, drops the persisted session and
// closes any open notification channel. A network failure still clears the
// local session; the token just dies by expiry instead.
func (a *App) Logout(ctx context.Context) error {
	if a.session == nil {
		return ErrNotSignedIn
	}
	userID := a.session.Profile.UserID

	err := a.remote.SignOut(ctx)
	if err != nil && !remote.IsNetwork(err) {
		return err
	}

	if cerr := a.registry.Close(userID); cerr != nil {
		a.log.Warn("close notification channel", zap.Error(cerr))
	}
	a.session = nil
	a.syncer = nil
	a.remote.SetSession(nil)
	if rerr := os.Remove(a.cfg.TokenPath); rerr != nil && !os.IsNotExist(rerr) {
		a.log.Warn("remove session file", zap.Error(rerr))
	}
	return err
}

// Sync refreshes one mirrored collection, or every collection when the
// argument is empty.
func (a *App) Sync(ctx context.Context, collection domain.Collection) error {
	if a.syncer == nil {
		return ErrNotSignedIn
	}
	if collection == "" {
		return a.syncer.SyncAll(ctx)
	}
	return a.syncer.Sync(ctx, collection)
}

func (a *App) Syncer() (*syncer.Syncer, error) {
	if a.syncer == nil {
		return nil, ErrNotSignedIn
	}
	return a.syncer, nil
}

// OpenChannel connects the live notification channel for the signed-in user.
func (a *App) OpenChannel(ctx context.Context) (*notify.Channel, error) {
	if a.session == nil {
		return nil, ErrNotSignedIn
	}
	return a.registry.Open(ctx, a.session.Profile)
}

func (a *App) adoptSession(s *domain.Session) {
	a.session = s
	a.remote.SetSession(s)
	a.syncer = syncer.New(a.remote, a.store, s.Profile, a.log)
}

func (a *App) saveSession(s *domain.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(a.cfg.TokenPath, data, 0600)
}

func (a *App) restoreSession() error {
	data, err := os.ReadFile(a.cfg.TokenPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}
	if s.Token == "" {
		return errors.New("session file has no token")
	}
	a.adoptSession(&s)
	return nil
}
