package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimai/reclaim/internal/application"
	"github.com/reclaimai/reclaim/internal/domain/auth"
	"github.com/reclaimai/reclaim/internal/domain/failure"
	"github.com/reclaimai/reclaim/internal/infra/sessionstore"
)

type fakeProvider struct {
	mu         sync.Mutex
	calls      int
	signIn     *auth.Session
	signUp     *auth.Session
	refreshed  *auth.Session
	err        error
	signedOut  string
	signOutErr error
}

func (f *fakeProvider) SignInWithPassword(_ context.Context, _, _ string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.signIn, nil
}

func (f *fakeProvider) SignUp(_ context.Context, _, _ string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.signUp, f.err
}

func (f *fakeProvider) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.signedOut = token
	return f.signOutErr
}

func (f *fakeProvider) Refresh(_ context.Context, _ string) (*auth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.refreshed == nil {
		return nil, errors.New("refresh token revoked")
	}
	return f.refreshed, nil
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T, p *fakeProvider, mem *sessionstore.Memory) *Store {
	t.Helper()
	s := NewStore("sid-1", Deps{
		Provider:    p,
		Persistence: mem,
		Bus:         mem,
		Clock:       application.FixedClock{T: now},
	})
	t.Cleanup(s.Close)
	return s
}

func TestInitializeWithoutSavedSession(t *testing.T) {
	mem := sessionstore.NewMemory()
	s := newStore(t, &fakeProvider{}, mem)
	assert.True(t, s.Loading())

	require.NoError(t, s.Initialize(context.Background()))

	select {
	case <-s.Ready():
	default:
		t.Fatal("ready channel must be closed after Initialize")
	}
	assert.False(t, s.Loading())
	assert.Nil(t, s.User())
	assert.Equal(t, 1, mem.Subscribers("sid-1"))
}

func TestInitializeRestoresAndRefreshesExpiredSession(t *testing.T) {
	mem := sessionstore.NewMemory()
	require.NoError(t, mem.Save(context.Background(), "sid-1", &auth.Session{
		AccessToken:  "old",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(-time.Minute),
		User:         auth.User{ID: "u1"},
	}))
	p := &fakeProvider{refreshed: &auth.Session{AccessToken: "new", RefreshToken: "rt2", ExpiresAt: now.Add(time.Hour), User: auth.User{ID: "u1"}}}
	s := newStore(t, p, mem)

	require.NoError(t, s.Initialize(context.Background()))
	require.NotNil(t, s.Session())
	assert.Equal(t, "new", s.Session().AccessToken)

	saved, _ := mem.Load(context.Background(), "sid-1")
	assert.Equal(t, "new", saved.AccessToken)
}

func TestInitializeFailedRefreshYieldsNoSession(t *testing.T) {
	mem := sessionstore.NewMemory()
	require.NoError(t, mem.Save(context.Background(), "sid-1", &auth.Session{
		AccessToken:  "old",
		RefreshToken: "rt",
		ExpiresAt:    now.Add(-time.Minute),
	}))
	s := newStore(t, &fakeProvider{}, mem)

	require.NoError(t, s.Initialize(context.Background()))
	assert.False(t, s.Loading())
	assert.Nil(t, s.User())
	saved, _ := mem.Load(context.Background(), "sid-1")
	assert.Nil(t, saved)
}

func TestSignInPersistsAndNotifies(t *testing.T) {
	mem := sessionstore.NewMemory()
	p := &fakeProvider{signIn: &auth.Session{AccessToken: "at", User: auth.User{ID: "u1", Email: "a@b.c"}}}
	s := newStore(t, p, mem)
	require.NoError(t, s.Initialize(context.Background()))

	var states []State
	unsub := s.Subscribe(func(st State) { states = append(states, st) })
	defer unsub()

	u, err := s.SignIn(context.Background(), " a@b.c ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	require.NotEmpty(t, states)
	assert.Equal(t, "u1", states[len(states)-1].User.ID)

	saved, _ := mem.Load(context.Background(), "sid-1")
	require.NotNil(t, saved)
	assert.Equal(t, "at", saved.AccessToken)
}

func TestSignInBeforeRestoreFinishesWins(t *testing.T) {
	mem := sessionstore.NewMemory()
	p := &fakeProvider{signIn: &auth.Session{AccessToken: "at", User: auth.User{ID: "u1"}}}
	s := newStore(t, p, mem)

	_, err := s.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.NoError(t, mem.Delete(context.Background(), "sid-1"))
	require.NoError(t, s.Initialize(context.Background()))

	require.NotNil(t, s.User())
	assert.Equal(t, "u1", s.User().ID)
}

func TestSignUpPasswordMismatchSkipsBackend(t *testing.T) {
	p := &fakeProvider{}
	s := newStore(t, p, sessionstore.NewMemory())

	_, err := s.SignUp(context.Background(), "a@b.c", "one", "two")
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.ErrValidation))
	assert.Equal(t, "Passwords do not match", failure.Message(err))
	assert.Equal(t, 0, p.calls)
}

func TestSignUpNeedingConfirmationKeepsSignedOut(t *testing.T) {
	s := newStore(t, &fakeProvider{}, sessionstore.NewMemory())

	sess, err := s.SignUp(context.Background(), "a@b.c", "pw", "pw")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Nil(t, s.User())
}

func TestSignOutClearsEvenWhenBackendFails(t *testing.T) {
	mem := sessionstore.NewMemory()
	p := &fakeProvider{
		signIn:     &auth.Session{AccessToken: "at", User: auth.User{ID: "u1"}},
		signOutErr: failure.Backend("sign out", 500, "boom"),
	}
	s := newStore(t, p, mem)
	require.NoError(t, s.Initialize(context.Background()))
	_, err := s.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	err = s.SignOut(context.Background())
	require.Error(t, err)
	assert.Equal(t, "at", p.signedOut)
	assert.Nil(t, s.User())
	saved, _ := mem.Load(context.Background(), "sid-1")
	assert.Nil(t, saved)
}

func TestEventsFromOtherStoresOfSameWorkspace(t *testing.T) {
	mem := sessionstore.NewMemory()
	a := newStore(t, &fakeProvider{signIn: &auth.Session{AccessToken: "at", User: auth.User{ID: "u1"}}}, mem)
	b := newStore(t, &fakeProvider{}, mem)
	require.NoError(t, a.Initialize(context.Background()))
	require.NoError(t, b.Initialize(context.Background()))

	_, err := a.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.NotNil(t, b.User())
	assert.Equal(t, "u1", b.User().ID)

	require.NoError(t, a.SignOut(context.Background()))
	assert.Nil(t, b.User())
}

func TestCloseUnsubscribes(t *testing.T) {
	mem := sessionstore.NewMemory()
	s := NewStore("sid-1", Deps{Provider: &fakeProvider{}, Persistence: mem, Bus: mem})
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, mem.Subscribers("sid-1"))

	s.Close()
	assert.Equal(t, 0, mem.Subscribers("sid-1"))
}

func TestAuthorizeAttachesToken(t *testing.T) {
	mem := sessionstore.NewMemory()
	s := newStore(t, &fakeProvider{signIn: &auth.Session{AccessToken: "at", ExpiresAt: now.Add(time.Hour), User: auth.User{ID: "u1"}}}, mem)

	_, err := s.Authorize(context.Background())
	assert.True(t, failure.Is(err, failure.ErrUnauthorized))

	_, err = s.SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	ctx, err := s.Authorize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "at", auth.AccessTokenFrom(ctx))
}
