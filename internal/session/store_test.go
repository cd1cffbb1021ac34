package session_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/credential"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/session"
	"github.com/nhle/taskflow/internal/testutil"
)

// fakeBackend records calls and lets tests inject failures.
type fakeBackend struct {
	users     map[string]model.User // keyed by email
	password  string
	cookies   []*http.Cookie
	logoutErr error
	loggedOut int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users: map[string]model.User{
			"ann@example.com": {ID: "u1", Name: "Ann", Email: "ann@example.com", Role: model.RoleAdmin},
			"bob@example.com": {ID: "u2", Name: "Bob", Email: "bob@example.com"},
		},
		password: "secret",
	}
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (model.User, error) {
	u, ok := f.users[email]
	if !ok || password != f.password {
		return model.User{}, &api.AuthError{Message: "Invalid credentials"}
	}
	f.cookies = []*http.Cookie{{Name: "token", Value: "tok-" + u.ID}}
	return u, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.loggedOut++
	return f.logoutErr
}

func (f *fakeBackend) Profile(context.Context) (model.User, error) {
	return f.users["ann@example.com"], nil
}

func (f *fakeBackend) Cookies() []*http.Cookie            { return f.cookies }
func (f *fakeBackend) SetCookies(cookies []*http.Cookie) { f.cookies = cookies }
func (f *fakeBackend) ClearCookies()                     { f.cookies = nil }

func TestLogin_ThenCurrentReturnsSameUser(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := session.New(backend, testutil.NewTestStore(t), credential.NewMemoryVault())

	for email, want := range backend.users {
		sess, err := s.Login(ctx, email, "secret")
		require.NoError(t, err)
		assert.Equal(t, want.ID, sess.UserID)

		cur, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, want.ID, cur.UserID)
	}
}

func TestLogin_DefaultsRoleToUser(t *testing.T) {
	s := session.New(newFakeBackend(), testutil.NewTestStore(t), nil)

	sess, err := s.Login(context.Background(), "bob@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, sess.Role)
	assert.False(t, sess.IsAdmin())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := session.New(newFakeBackend(), testutil.NewTestStore(t), nil)

	_, err := s.Login(context.Background(), "ann@example.com", "nope")
	require.True(t, api.IsAuthError(err))

	_, ok := s.Current()
	assert.False(t, ok)

	_, err = s.RequireCurrent()
	assert.True(t, api.IsAuthError(err))
}

func TestHydrate_RestoresIdentityAndCookies(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewTestStore(t)
	vault := credential.NewMemoryVault()

	first := session.New(newFakeBackend(), storage, vault)
	_, err := first.Login(ctx, "ann@example.com", "secret")
	require.NoError(t, err)

	backend := newFakeBackend()
	second := session.New(backend, storage, vault)

	var notified []string
	second.Subscribe(func(s model.Session, ok bool) {
		if ok {
			notified = append(notified, s.UserID)
		}
	})

	require.NoError(t, second.Hydrate(ctx))

	cur, ok := second.Current()
	require.True(t, ok)
	assert.Equal(t, "u1", cur.UserID)
	assert.Equal(t, model.RoleAdmin, cur.Role)
	assert.Equal(t, []string{"u1"}, notified)
	require.Len(t, backend.cookies, 1)
	assert.Equal(t, "tok-u1", backend.cookies[0].Value)
}

func TestHydrate_NothingPersisted(t *testing.T) {
	s := session.New(newFakeBackend(), testutil.NewTestStore(t), credential.NewMemoryVault())

	require.NoError(t, s.Hydrate(context.Background()))
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestLogout_ClearsEverythingAndNotifies(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewTestStore(t)
	vault := credential.NewMemoryVault()
	backend := newFakeBackend()
	s := session.New(backend, storage, vault)

	_, err := s.Login(ctx, "ann@example.com", "secret")
	require.NoError(t, err)

	var loggedOut bool
	unsubscribe := s.Subscribe(func(_ model.Session, ok bool) { loggedOut = !ok })
	defer unsubscribe()

	require.NoError(t, s.Logout(ctx))

	assert.True(t, loggedOut)
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Nil(t, backend.cookies)

	items, err := storage.Items(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	cookies, err := vault.LoadCookies()
	require.NoError(t, err)
	assert.Nil(t, cookies)
}

func TestLogout_BackendFailureRetainsIdentity(t *testing.T) {
	ctx := context.Background()
	storage := testutil.NewTestStore(t)
	backend := newFakeBackend()
	s := session.New(backend, storage, nil)

	_, err := s.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	backend.logoutErr = &api.NetworkError{Op: "POST /auth/logout", Err: errors.New("connection reset")}
	err = s.Logout(ctx)
	require.True(t, api.IsNetworkError(err))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "u2", cur.UserID)

	v, ok, err := storage.GetItem(ctx, session.KeyUserID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u2", v)
}

func TestLogout_ExpiredServerSessionStillClears(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := session.New(backend, testutil.NewTestStore(t), nil)

	_, err := s.Login(ctx, "bob@example.com", "secret")
	require.NoError(t, err)

	backend.logoutErr = &api.AuthError{Message: "expired"}
	require.NoError(t, s.Logout(ctx))
	_, ok := s.Current()
	assert.False(t, ok)
}

func TestLogout_WithoutSessionIsNoop(t *testing.T) {
	backend := newFakeBackend()
	s := session.New(backend, testutil.NewTestStore(t), nil)

	require.NoError(t, s.Logout(context.Background()))
	assert.Zero(t, backend.loggedOut)
}

func TestProfile_RequiresLogin(t *testing.T) {
	s := session.New(newFakeBackend(), testutil.NewTestStore(t), nil)

	_, err := s.Profile(context.Background())
	assert.True(t, api.IsAuthError(err))
}
