// Package session owns the authentication state of the client: the held
// credential, the profile of its holder and the status derived from both.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/types"
	"github.com/user/mayberry/pkg/medapi"
)

// Status is the authentication state.
type Status int

const (
	Unauthenticated Status = iota
	Verifying
	Authenticated
)

func (s Status) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Session is a snapshot of the authentication state. User is set only when
// Status is Authenticated.
type Session struct {
	Token  string
	User   *medapi.Profile
	Status Status
}

// AuthAPI is the subset of medapi.Service the manager needs.
type AuthAPI interface {
	Login(ctx context.Context, req medapi.LoginRequest) (*medapi.TokenResponse, error)
	Register(ctx context.Context, req medapi.RegisterRequest) error
	Me(ctx context.Context) (*medapi.Profile, error)
}

// AuthError carries the message to show the user for a failed login or
// registration. Unwrap exposes the classified gateway error.
type AuthError struct {
	Op     string
	Detail string
	Err    error
}

func (e *AuthError) Error() string { return e.Detail }

func (e *AuthError) Unwrap() error { return e.Err }

// Manager is the single writer of the credential. It implements
// gateway.Credentials so the gateway can read the token and expire it.
type Manager struct {
	api    AuthAPI
	store  types.CredentialStore
	logger *slog.Logger

	mu      sync.Mutex
	token   string
	user    *medapi.Profile
	status  Status
	subs    map[int]func(Session)
	nextSub int

	restoreOnce sync.Once
	restoreErr  error
}

var _ gateway.Credentials = (*Manager)(nil)

// New creates a Manager in the Unauthenticated state.
func New(api AuthAPI, store types.CredentialStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:    api,
		store:  store,
		logger: logger,
		subs:   make(map[int]func(Session)),
	}
}

// Current returns a snapshot of the session.
func (m *Manager) Current() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Manager) snapshot() Session {
	return Session{Token: m.token, User: m.user, Status: m.status}
}

// Token returns the held credential, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Subscribe registers fn to be called with the new session after every
// status change. The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// transition applies fn under the lock and notifies subscribers if the
// status changed.
func (m *Manager) transition(fn func()) {
	m.mu.Lock()
	before := m.status
	fn()
	after := m.snapshot()
	var subs []func(Session)
	if after.Status != before {
		for _, s := range m.subs {
			subs = append(subs, s)
		}
	}
	m.mu.Unlock()

	if len(subs) > 0 {
		m.logger.Debug("session status changed", "from", before, "to", after.Status)
	}
	for _, s := range subs {
		s(after)
	}
}

// Restore verifies a persisted credential on startup. Only the first call
// does any work; later calls return its result.
func (m *Manager) Restore(ctx context.Context) error {
	m.restoreOnce.Do(func() {
		m.restoreErr = m.restore(ctx)
	})
	return m.restoreErr
}

func (m *Manager) restore(ctx context.Context) error {
	token, err := m.store.Load(ctx)
	if err != nil {
		m.discard(ctx)
		return fmt.Errorf("load credential: %w", err)
	}
	if token == "" {
		return nil
	}

	m.transition(func() {
		m.token = token
		m.user = nil
		m.status = Verifying
	})

	profile, err := m.api.Me(ctx)
	if err != nil {
		m.logger.Info("stored credential rejected", "error", err)
		m.discard(ctx)
		return fmt.Errorf("verify credential: %w", err)
	}

	m.authenticate(token, profile)
	return nil
}

// Login exchanges credentials for a token, persists it and fetches the
// profile. On failure the session ends Unauthenticated and the error's
// message is the server detail, or "Login failed".
func (m *Manager) Login(ctx context.Context, email, password string) error {
	tok, err := m.api.Login(ctx, medapi.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.discard(ctx)
		return &AuthError{Op: "login", Detail: gateway.Detail(err, "Login failed"), Err: err}
	}

	if err := m.store.Save(ctx, tok.AccessToken); err != nil {
		m.discard(ctx)
		return &AuthError{Op: "login", Detail: "Login failed", Err: fmt.Errorf("persist credential: %w", err)}
	}

	m.transition(func() {
		m.token = tok.AccessToken
		m.user = nil
		m.status = Verifying
	})

	profile, err := m.api.Me(ctx)
	if err != nil {
		m.discard(ctx)
		return &AuthError{Op: "login", Detail: gateway.Detail(err, "Login failed"), Err: err}
	}

	m.authenticate(tok.AccessToken, profile)
	m.logger.Info("logged in", "email", profile.Email)
	return nil
}

// Register creates an account without touching the session.
func (m *Manager) Register(ctx context.Context, req medapi.RegisterRequest) error {
	if err := m.api.Register(ctx, req); err != nil {
		return &AuthError{Op: "register", Detail: gateway.Detail(err, "Registration failed"), Err: err}
	}
	return nil
}

// Logout discards the credential unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	m.discard(ctx)
	m.logger.Info("logged out")
}

// Expire is called by the gateway when the service rejects the credential.
// Calling it without a held credential does nothing.
func (m *Manager) Expire() {
	m.discard(context.Background())
}

func (m *Manager) authenticate(token string, profile *medapi.Profile) {
	m.transition(func() {
		// A concurrent Expire may have cleared the token while the profile
		// was in flight.
		if m.token != token {
			return
		}
		m.user = profile
		m.status = Authenticated
	})
}

func (m *Manager) discard(ctx context.Context) {
	var held bool
	m.transition(func() {
		held = m.token != "" || m.status != Unauthenticated
		m.token = ""
		m.user = nil
		m.status = Unauthenticated
	})
	if !held {
		return
	}
	if err := m.store.Delete(ctx); err != nil {
		m.logger.Warn("failed to remove stored credential", "error", err)
	}
}

// TokenExpiry reads the exp claim of the held token without verifying its
// signature. ok is false when no token is held or it carries no expiry.
func (m *Manager) TokenExpiry() (exp time.Time, ok bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	date, err := parsed.Claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}
