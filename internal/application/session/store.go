package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/platform/logger"
)

var errNoSession = errors.New("not signed in")

// refreshSkew treats tokens this close to expiry as expired.
const refreshSkew = 30 * time.Second

// State is what listeners observe on each transition.
type State struct {
	User    *auth.User
	Loading bool
}

type Deps struct {
	Provider    auth.Provider
	Persistence auth.Persistence
	Bus         auth.Bus
	Clock       application.Clock
	Log         *logger.Logger
}

// Store holds the identity of one workspace. It is constructed explicitly per
// workspace and torn down with Close.
type Store struct {
	sid      string
	provider auth.Provider
	persist  auth.Persistence
	bus      auth.Bus
	clock    application.Clock
	log      *logger.Logger

	mu      sync.RWMutex
	session *auth.Session
	// touched is set once a sign-in or sign-out lands; a slower restore
	// must not overwrite it.
	touched   bool
	loading   bool
	listeners map[int]func(State)
	nextID    int
	unsub     func()
	closed    bool

	ready     chan struct{}
	readyOnce sync.Once
}

func NewStore(sid string, d Deps) *Store {
	if d.Clock == nil {
		d.Clock = application.SystemClock{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return &Store{
		sid:       sid,
		provider:  d.Provider,
		persist:   d.Persistence,
		bus:       d.Bus,
		clock:     d.Clock,
		log:       d.Log.With("component", "SessionStore"),
		loading:   true,
		listeners: make(map[int]func(State)),
		ready:     make(chan struct{}),
	}
}

// Initialize restores the persisted session, refreshing an expired access
// token, then subscribes to session-change events for the workspace.
// Loading is cleared however restore ends.
func (s *Store) Initialize(ctx context.Context) error {
	defer s.markReady()

	restored, err := s.restore(ctx)
	if err != nil {
		s.log.Warn("session restore failed", "sid", s.sid, "error", err)
	}
	s.mu.Lock()
	if !s.touched {
		s.session = restored
	}
	s.mu.Unlock()

	if s.bus == nil {
		return nil
	}
	unsub, subErr := s.bus.Subscribe(ctx, s.sid, s.apply)
	if subErr != nil {
		s.log.Error("session subscribe failed", "sid", s.sid, "error", subErr)
		return subErr
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *Store) restore(ctx context.Context) (*auth.Session, error) {
	if s.persist == nil {
		return nil, nil
	}
	saved, err := s.persist.Load(ctx, s.sid)
	if err != nil || saved == nil {
		return nil, err
	}
	if !saved.Expired(s.clock.Now(), refreshSkew) {
		return saved, nil
	}
	if saved.RefreshToken == "" {
		_ = s.persist.Delete(ctx, s.sid)
		return nil, nil
	}
	fresh, err := s.provider.Refresh(ctx, saved.RefreshToken)
	if err != nil {
		_ = s.persist.Delete(ctx, s.sid)
		return nil, err
	}
	if err := s.persist.Save(ctx, s.sid, fresh); err != nil {
		s.log.Warn("persist refreshed session failed", "sid", s.sid, "error", err)
	}
	return fresh, nil
}

func (s *Store) markReady() {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		close(s.ready)
		s.notify()
	})
}

// apply handles an event from the bus.
func (s *Store) apply(ev auth.Event) {
	s.mu.Lock()
	switch ev.Kind {
	case auth.EventSignedIn, auth.EventTokenRefreshed:
		if ev.Session != nil {
			cp := *ev.Session
			s.session = &cp
		}
	case auth.EventSignedOut:
		s.session = nil
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) notify() {
	st := s.State()
	s.mu.RLock()
	fns := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Ready is closed once Initialize has finished.
func (s *Store) Ready() <-chan struct{} { return s.ready }

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// User returns the current identity, nil when signed out.
func (s *Store) User() *auth.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	u := s.session.User
	return &u
}

// Session returns a copy of the current session.
func (s *Store) Session() *auth.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{Loading: s.loading}
	if s.session != nil {
		u := s.session.User
		st.User = &u
	}
	return st
}

// Subscribe registers fn for every state transition and returns the
// matching unsubscribe.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) SignIn(ctx context.Context, email, password string) (*auth.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, failure.Validation("Email and password are required")
	}
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.establish(ctx, sess, auth.EventSignedIn)
	u := sess.User
	return &u, nil
}

// SignUp registers an account. A nil session means the address must be
// confirmed before signing in.
func (s *Store) SignUp(ctx context.Context, email, password, confirm string) (*auth.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, failure.Validation("Email and password are required")
	}
	if password != confirm {
		return nil, failure.Validation("Passwords do not match")
	}
	sess, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		s.establish(ctx, sess, auth.EventSignedIn)
	}
	return sess, nil
}

// SignOut asks the backend to end the session. The local session is cleared
// whatever the backend answers.
func (s *Store) SignOut(ctx context.Context) error {
	current := s.Session()
	var err error
	if current != nil && current.AccessToken != "" {
		err = s.provider.SignOut(ctx, current.AccessToken)
		if err != nil {
			s.log.Warn("backend sign out failed", "sid", s.sid, "error", err)
		}
	}

	s.mu.Lock()
	s.session = nil
	s.touched = true
	s.mu.Unlock()
	if s.persist != nil {
		if derr := s.persist.Delete(ctx, s.sid); derr != nil {
			s.log.Warn("delete persisted session failed", "sid", s.sid, "error", derr)
		}
	}
	s.publish(ctx, auth.Event{Kind: auth.EventSignedOut})
	s.notify()
	return err
}

// Authorize attaches the access token to ctx, refreshing it first when it
// is about to expire.
func (s *Store) Authorize(ctx context.Context) (context.Context, error) {
	current := s.Session()
	if current == nil {
		return ctx, failure.Wrap(failure.ErrUnauthorized, "authorize", errNoSession)
	}
	if current.Expired(s.clock.Now(), refreshSkew) && current.RefreshToken != "" {
		fresh, err := s.provider.Refresh(ctx, current.RefreshToken)
		if err != nil {
			return ctx, failure.Wrap(failure.ErrUnauthorized, "refresh session", err)
		}
		s.establish(ctx, fresh, auth.EventTokenRefreshed)
		current = fresh
	}
	return auth.WithAccessToken(ctx, current.AccessToken), nil
}

func (s *Store) establish(ctx context.Context, sess *auth.Session, kind auth.EventKind) {
	cp := *sess
	s.mu.Lock()
	s.session = &cp
	s.touched = true
	s.mu.Unlock()
	if s.persist != nil {
		if err := s.persist.Save(ctx, s.sid, &cp); err != nil {
			s.log.Warn("persist session failed", "sid", s.sid, "error", err)
		}
	}
	s.publish(ctx, auth.Event{Kind: kind, Session: &cp})
	s.notify()
}

func (s *Store) publish(ctx context.Context, ev auth.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, s.sid, ev); err != nil {
		s.log.Warn("publish session event failed", "sid", s.sid, "kind", ev.Kind, "error", err)
	}
}

// Close unsubscribes from session events and drops listeners.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.listeners = make(map[int]func(State))
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
