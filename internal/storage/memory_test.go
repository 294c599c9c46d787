// AngelaMos | 2026
// memory_test.go

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/storage"
)

func TestMemory_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory("profile", "tab-a")

	_, err := s.Get(ctx, storage.KeyToken)
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, s.SetMany(ctx, map[string]string{
		storage.KeyToken: "tok",
		storage.KeyUser:  `{"id":"u1"}`,
	}))

	v, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	require.NoError(t, s.Delete(ctx, storage.SessionKeys...))

	_, err = s.Get(ctx, storage.KeyUser)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemory_WatchSharedProfile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := storage.NewMemory("profile", "tab-a")
	b := a.WithOrigin("tab-b")

	changes, err := a.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, b.SetMany(ctx, map[string]string{storage.KeyToken: "tok"}))

	v, err := a.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	select {
	case change := <-changes:
		assert.Equal(t, "tab-b", change.Origin)
		assert.Equal(t, "profile", change.Namespace)
		assert.True(t, change.Touches(storage.KeyToken))
		assert.False(t, change.Touches(storage.KeyTenant))
	case <-time.After(time.Second):
		t.Fatal("expected a change notification")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-changes:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestMemory_SlowWatcherKeepsEveryKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := storage.NewMemory("profile", "tab-a")
	b := a.WithOrigin("tab-b")

	changes, err := a.Watch(ctx)
	require.NoError(t, err)

	const writes = 40
	for i := 0; i < writes; i++ {
		require.NoError(t, b.SetMany(ctx, map[string]string{storage.KeyUser: `{"id":"u1"}`}))
	}
	require.NoError(t, b.Delete(ctx, storage.KeyToken))

	var received []storage.Change
	for done := false; !done; {
		select {
		case c := <-changes:
			received = append(received, c)
		default:
			done = true
		}
	}

	assert.Less(t, len(received), writes+1)

	sawToken := false
	for _, c := range received {
		assert.Equal(t, "tab-b", c.Origin)
		if c.Touches(storage.KeyToken) {
			sawToken = true
		}
	}
	assert.True(t, sawToken, "token deletion lost behind a full buffer")
}

func TestMemory_Close(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemory("profile", "tab-a")

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, open := <-changes
	assert.False(t, open)

	assert.ErrorIs(t, s.SetMany(ctx, map[string]string{"k": "v"}), core.ErrUnavailable)
	_, err = s.Watch(ctx)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}
