package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/mayberry/internal/gateway"
	"github.com/user/mayberry/internal/state"
	"github.com/user/mayberry/pkg/medapi"
)

type memStore struct {
	mu      sync.Mutex
	token   string
	deletes int
}

func (s *memStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *memStore) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memStore) Delete(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.deletes++
	return nil
}

type fakeAuth struct {
	login    func(medapi.LoginRequest) (*medapi.TokenResponse, error)
	register func(medapi.RegisterRequest) error
	me       func() (*medapi.Profile, error)
	meCalls  int
}

func (f *fakeAuth) Login(_ context.Context, req medapi.LoginRequest) (*medapi.TokenResponse, error) {
	return f.login(req)
}

func (f *fakeAuth) Register(_ context.Context, req medapi.RegisterRequest) error {
	return f.register(req)
}

func (f *fakeAuth) Me(context.Context) (*medapi.Profile, error) {
	f.meCalls++
	return f.me()
}

func okProfile() (*medapi.Profile, error) {
	return &medapi.Profile{ID: "u1", Email: "a@b.com", IsActive: true}, nil
}

func TestLoginSuccess(t *testing.T) {
	store := &memStore{}
	api := &fakeAuth{
		login: func(req medapi.LoginRequest) (*medapi.TokenResponse, error) {
			assert.Equal(t, "a@b.com", req.Email)
			return &medapi.TokenResponse{AccessToken: "T"}, nil
		},
		me: okProfile,
	}
	m := New(api, store, nil)

	var seen []Status
	m.Subscribe(func(s Session) { seen = append(seen, s.Status) })

	require.NoError(t, m.Login(context.Background(), "a@b.com", "Secret1"))

	cur := m.Current()
	assert.Equal(t, Authenticated, cur.Status)
	assert.Equal(t, "T", cur.Token)
	require.NotNil(t, cur.User)
	assert.Equal(t, "a@b.com", cur.User.Email)
	assert.Equal(t, "T", store.token)
	assert.Equal(t, []Status{Verifying, Authenticated}, seen)
}

func TestLoginFailureUsesServerDetail(t *testing.T) {
	store := &memStore{}
	api := &fakeAuth{
		login: func(medapi.LoginRequest) (*medapi.TokenResponse, error) {
			return nil, &gateway.Error{Kind: gateway.KindValidation, Status: 400, Detail: "Incorrect email or password"}
		},
	}
	m := New(api, store, nil)

	err := m.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "Incorrect email or password", authErr.Error())
	assert.True(t, errors.Is(err, gateway.ErrValidation))
	assert.Equal(t, Unauthenticated, m.Current().Status)
	assert.Empty(t, store.token)
}

func TestLoginFailureFallbackMessage(t *testing.T) {
	api := &fakeAuth{
		login: func(medapi.LoginRequest) (*medapi.TokenResponse, error) {
			return nil, &gateway.Error{Kind: gateway.KindNetworkFailure, Err: errors.New("dial tcp: refused")}
		},
	}
	err := New(api, &memStore{}, nil).Login(context.Background(), "a@b.com", "x")
	require.Error(t, err)
	assert.Equal(t, "Login failed", err.Error())
}

func TestLoginProfileFailureDiscardsCredential(t *testing.T) {
	store := &memStore{}
	api := &fakeAuth{
		login: func(medapi.LoginRequest) (*medapi.TokenResponse, error) {
			return &medapi.TokenResponse{AccessToken: "T"}, nil
		},
		me: func() (*medapi.Profile, error) {
			return nil, &gateway.Error{Kind: gateway.KindServerFault, Status: 500}
		},
	}
	m := New(api, store, nil)

	err := m.Login(context.Background(), "a@b.com", "Secret1")
	require.Error(t, err)
	assert.Equal(t, "Login failed", err.Error())
	assert.Equal(t, Unauthenticated, m.Current().Status)
	assert.Empty(t, m.Token())
	assert.Empty(t, store.token)
}

func TestRegisterHasNoSessionEffect(t *testing.T) {
	api := &fakeAuth{
		register: func(req medapi.RegisterRequest) error {
			if req.Email == "taken@b.com" {
				return &gateway.Error{Kind: gateway.KindValidation, Status: 400, Detail: "Email already registered"}
			}
			return nil
		},
	}
	m := New(api, &memStore{}, nil)
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, medapi.RegisterRequest{Email: "new@b.com", Password: "Secret1"}))
	assert.Equal(t, Unauthenticated, m.Current().Status)

	err := m.Register(ctx, medapi.RegisterRequest{Email: "taken@b.com"})
	require.Error(t, err)
	assert.Equal(t, "Email already registered", err.Error())

	api.register = func(medapi.RegisterRequest) error {
		return &gateway.Error{Kind: gateway.KindServerFault, Status: 502}
	}
	err = m.Register(ctx, medapi.RegisterRequest{Email: "x@b.com"})
	require.Error(t, err)
	assert.Equal(t, "Registration failed", err.Error())
}

func TestRestoreValidCredential(t *testing.T) {
	store := &memStore{token: "T"}
	api := &fakeAuth{me: okProfile}
	m := New(api, store, nil)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Authenticated, m.Current().Status)
	assert.Equal(t, "T", m.Token())
}

func TestRestoreInvalidCredential(t *testing.T) {
	store := &memStore{token: "stale"}
	api := &fakeAuth{me: func() (*medapi.Profile, error) {
		return nil, &gateway.Error{Kind: gateway.KindAuthorizationExpired, Status: 401}
	}}
	m := New(api, store, nil)

	err := m.Restore(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrAuthorizationExpired))
	assert.Equal(t, Unauthenticated, m.Current().Status)
	assert.Empty(t, store.token)
	assert.Equal(t, 1, store.deletes)
}

func TestRestoreWithoutCredential(t *testing.T) {
	api := &fakeAuth{}
	m := New(api, &memStore{}, nil)

	require.NoError(t, m.Restore(context.Background()))
	assert.Equal(t, Unauthenticated, m.Current().Status)
	assert.Zero(t, api.meCalls)
}

func TestRestoreRunsOnce(t *testing.T) {
	store := &memStore{token: "T"}
	api := &fakeAuth{me: okProfile}
	m := New(api, store, nil)

	require.NoError(t, m.Restore(context.Background()))
	m.Logout(context.Background())
	store.token = "T2"
	require.NoError(t, m.Restore(context.Background()))

	assert.Equal(t, 1, api.meCalls)
	assert.Equal(t, Unauthenticated, m.Current().Status)
}

func TestLogoutAndExpireAreIdempotent(t *testing.T) {
	store := &memStore{token: "T"}
	m := New(&fakeAuth{me: okProfile}, store, nil)
	require.NoError(t, m.Restore(context.Background()))

	notified := 0
	unsubscribe := m.Subscribe(func(Session) { notified++ })

	m.Expire()
	m.Expire()
	m.Logout(context.Background())

	assert.Equal(t, Unauthenticated, m.Current().Status)
	assert.Nil(t, m.Current().User)
	assert.Equal(t, 1, notified)
	assert.Equal(t, 1, store.deletes)

	unsubscribe()
	m.transition(func() { m.status = Verifying })
	assert.Equal(t, 1, notified)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a@b.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)

	m := New(&fakeAuth{me: okProfile}, &memStore{token: signed}, nil)
	_, ok := m.TokenExpiry()
	assert.False(t, ok)

	require.NoError(t, m.Restore(context.Background()))
	got, ok := m.TokenExpiry()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	opaque := New(&fakeAuth{me: okProfile}, &memStore{token: "not-a-jwt"}, nil)
	require.NoError(t, opaque.Restore(context.Background()))
	_, ok = opaque.TokenExpiry()
	assert.False(t, ok)
}

// A 401 during a call made with a stored credential clears it through the
// gateway hook, and the next call goes out without a bearer header.
func TestGatewayExpiryEndsSession(t *testing.T) {
	var mu sync.Mutex
	var chatAuth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/me":
			w.Write([]byte(`{"id":"u1","email":"a@b.com","is_active":true}`))
		case "/medical/chat":
			mu.Lock()
			chatAuth = append(chatAuth, r.Header.Get("Authorization"))
			mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
		}
	}))
	defer server.Close()

	store := state.NewCredentialStore(t.TempDir())
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "T"))

	gw := gateway.New(server.URL)
	client := gateway.NewClient(gw)
	m := New(client, store, nil)
	gw.Bind(m)

	require.NoError(t, m.Restore(ctx))
	require.Equal(t, Authenticated, m.Current().Status)

	_, err := client.Chat(ctx, medapi.ChatRequest{Content: "hi", SessionID: "s"})
	require.True(t, errors.Is(err, gateway.ErrAuthorizationExpired))
	assert.Equal(t, Unauthenticated, m.Current().Status)

	persisted, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, persisted)

	_, _ = client.Chat(ctx, medapi.ChatRequest{Content: "hi", SessionID: "s"})
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, chatAuth, 2)
	assert.Equal(t, "Bearer T", chatAuth[0])
	assert.Empty(t, chatAuth[1])
}
