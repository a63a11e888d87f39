package sessionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reclaimai/reclaim/internal/domain/auth"
)

func TestMemoryPersistence(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	s, err := m.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, s)

	require.NoError(t, m.Save(ctx, "sid-1", &auth.Session{AccessToken: "at", User: auth.User{ID: "u1"}}))
	s, err = m.Load(ctx, "sid-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "u1", s.User.ID)

	require.NoError(t, m.Delete(ctx, "sid-1"))
	s, err = m.Load(ctx, "sid-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestMemoryBusScopesEventsPerWorkspace(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got []auth.EventKind
	unsub, err := m.Subscribe(ctx, "sid-1", func(ev auth.Event) { got = append(got, ev.Kind) })
	require.NoError(t, err)

	require.NoError(t, m.Publish(ctx, "sid-2", auth.Event{Kind: auth.EventSignedIn}))
	require.NoError(t, m.Publish(ctx, "sid-1", auth.Event{Kind: auth.EventSignedOut}))
	assert.Equal(t, []auth.EventKind{auth.EventSignedOut}, got)

	unsub()
	unsub()
	assert.Equal(t, 0, m.Subscribers("sid-1"))
	require.NoError(t, m.Publish(ctx, "sid-1", auth.Event{Kind: auth.EventSignedIn}))
	assert.Len(t, got, 1)
}
