// Package session holds the authenticated identity of the client with an
// explicit lifecycle: Hydrate on startup, Login, Logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/store"
)

// Keys of the persisted identity fields in local storage.
const (
	KeyUserID    = "userId"
	KeyUserName  = "userName"
	KeyUserEmail = "userEmail"
	KeyUserRole  = "userRole"
)

var identityKeys = []string{KeyUserID, KeyUserName, KeyUserEmail, KeyUserRole}

// Backend is the subset of the REST client the session needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (model.User, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (model.User, error)
	Cookies() []*http.Cookie
	SetCookies(cookies []*http.Cookie)
	ClearCookies()
}

// CookieVault persists session cookies between runs.
type CookieVault interface {
	SaveCookies(cookies []*http.Cookie) error
	LoadCookies() ([]*http.Cookie, error)
	Clear() error
}

// Listener is notified after every identity change. ok is false after logout.
type Listener func(s model.Session, ok bool)

// Store is the single owner of the current session.
type Store struct {
	backend Backend
	storage store.Store
	vault   CookieVault

	mu        sync.RWMutex
	current   *model.Session
	listeners map[int]Listener
	nextID    int
}

// New creates an empty store. vault may be nil, in which case cookies
// live only as long as the process.
func New(backend Backend, storage store.Store, vault CookieVault) *Store {
	return &Store{
		backend:   backend,
		storage:   storage,
		vault:     vault,
		listeners: make(map[int]Listener),
	}
}

// Hydrate restores the identity persisted by a previous Login and puts the
// saved cookies back into the backend's jar. It is a no-op when nothing
// was persisted.
func (s *Store) Hydrate(ctx context.Context) error {
	items, err := s.storage.Items(ctx)
	if err != nil {
		return fmt.Errorf("reading persisted session: %w", err)
	}

	userID := items[KeyUserID]
	if userID == "" {
		return nil
	}

	if s.vault != nil {
		cookies, err := s.vault.LoadCookies()
		if err != nil {
			log.Printf("session: restoring cookies: %v", err)
		} else {
			s.backend.SetCookies(cookies)
		}
	}

	role := model.Role(items[KeyUserRole])
	if role != model.RoleAdmin {
		role = model.RoleUser
	}

	sess := model.Session{
		UserID: userID,
		Name:   items[KeyUserName],
		Email:  items[KeyUserEmail],
		Role:   role,
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.notify(sess, true)
	return nil
}

// Login exchanges credentials with the backend and stores the resulting
// identity in memory and in local storage.
func (s *Store) Login(ctx context.Context, email, password string) (model.Session, error) {
	user, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}

	sess := model.SessionFromUser(user)

	err = s.storage.SetItems(ctx, map[string]string{
		KeyUserID:    sess.UserID,
		KeyUserName:  sess.Name,
		KeyUserEmail: sess.Email,
		KeyUserRole:  string(sess.Role),
	})
	if err != nil {
		return model.Session{}, fmt.Errorf("persisting session: %w", err)
	}

	if s.vault != nil {
		if err := s.vault.SaveCookies(s.backend.Cookies()); err != nil {
			log.Printf("session: saving cookies: %v", err)
		}
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	s.notify(sess, true)
	return sess, nil
}

// Logout invalidates the server session and then clears the identity.
// When the backend call fails the identity is kept and the error returned,
// except for an auth failure, which means the server session is already gone.
func (s *Store) Logout(ctx context.Context) error {
	if _, ok := s.Current(); !ok {
		return nil
	}

	if err := s.backend.Logout(ctx); err != nil && !api.IsAuthError(err) {
		return err
	}

	var errs []error
	if err := s.storage.RemoveItems(ctx, identityKeys...); err != nil {
		errs = append(errs, fmt.Errorf("clearing persisted session: %w", err))
	}
	if s.vault != nil {
		if err := s.vault.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	s.backend.ClearCookies()

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	s.notify(model.Session{}, false)
	return errors.Join(errs...)
}

// Current returns the stored identity, if any.
func (s *Store) Current() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

// RequireCurrent gates access to authenticated operations.
func (s *Store) RequireCurrent() (model.Session, error) {
	sess, ok := s.Current()
	if !ok {
		return model.Session{}, &api.AuthError{Message: "not logged in"}
	}
	return sess, nil
}

// Profile asks the backend who the session cookie belongs to.
func (s *Store) Profile(ctx context.Context) (model.User, error) {
	if _, err := s.RequireCurrent(); err != nil {
		return model.User{}, err
	}
	return s.backend.Profile(ctx)
}

// Subscribe registers fn for identity changes and returns a function that
// removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// notify calls every listener outside the lock.
func (s *Store) notify(sess model.Session, ok bool) {
	s.mu.RLock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(sess, ok)
	}
}
