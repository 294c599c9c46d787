// AngelaMos | 2026
// poller_test.go

package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/poller"
	"github.com/carterperez-dev/clinic-session/internal/session"
)

type fetcherFunc func(ctx context.Context, token, path string) (int, error)

func (f fetcherFunc) Badge(ctx context.Context, token, path string) (int, error) {
	return f(ctx, token, path)
}

var sources = []poller.Source{
	{Module: "tasks", Path: "/tasks/pending/count"},
	{Module: "inventory", Path: "/inventory/low-stock/count"},
}

func TestPoller_RefreshesUntilScopeEnds(t *testing.T) {
	var calls atomic.Int32
	f := fetcherFunc(func(_ context.Context, token, path string) (int, error) {
		assert.Equal(t, "tok", token)
		n := calls.Add(1)
		if path == "/inventory/low-stock/count" {
			return 0, errors.New("boom")
		}
		return int(n), nil
	})

	p := poller.New(f, sources, 10*time.Millisecond, nil)
	scope, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(scope, session.State{Token: "tok", Generation: 1})
	}()

	require.Eventually(t, func() bool {
		n, ok := p.Count("tasks")
		return ok && n > 2
	}, time.Second, 5*time.Millisecond)

	_, ok := p.Count("inventory")
	assert.False(t, ok)

	cancel()
	wg.Wait()

	assert.Empty(t, p.Counts())

	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

func TestPoller_DiscardsLateResults(t *testing.T) {
	scope, cancel := context.WithCancel(context.Background())
	f := fetcherFunc(func(context.Context, string, string) (int, error) {
		cancel()
		return 42, nil
	})

	p := poller.New(f, sources[:1], time.Hour, nil)
	p.Run(scope, session.State{Token: "tok", Generation: 3})

	_, ok := p.Count("tasks")
	assert.False(t, ok)
}

func TestPoller_NoSources(t *testing.T) {
	p := poller.New(fetcherFunc(func(context.Context, string, string) (int, error) {
		t.Fatal("unexpected fetch")
		return 0, nil
	}), nil, time.Millisecond, nil)

	p.Run(context.Background(), session.State{})
}
