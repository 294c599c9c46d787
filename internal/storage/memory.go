// AngelaMos | 2026
// memory.go

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

var changesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
	Name: "clinicd_storage_changes_coalesced_total",
	Help: "Change notifications merged because a memory watcher fell behind.",
})

type memoryData struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[int]chan Change
	nextID int
	closed bool
}

// Memory keeps the snapshot in process. Handles created with WithOrigin
// share the same data, which is how tests model two daemons on one
// profile.
type Memory struct {
	data      *memoryData
	namespace string
	origin    string
}

func NewMemory(namespace, origin string) *Memory {
	return &Memory{
		data: &memoryData{
			values: make(map[string]string),
			subs:   make(map[int]chan Change),
		},
		namespace: namespace,
		origin:    origin,
	}
}

func (m *Memory) WithOrigin(origin string) *Memory {
	return &Memory{data: m.data, namespace: m.namespace, origin: origin}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.data.mu.RLock()
	defer m.data.mu.RUnlock()

	v, ok := m.data.values[key]
	if !ok {
		return "", fmt.Errorf("get %s: %w", key, core.ErrNotFound)
	}
	return v, nil
}

func (m *Memory) SetMany(_ context.Context, values map[string]string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()

	if m.data.closed {
		return fmt.Errorf("set: %w", core.ErrUnavailable)
	}

	keys := make([]string, 0, len(values))
	for k, v := range values {
		m.data.values[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m.publishLocked(keys)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()

	if m.data.closed {
		return fmt.Errorf("delete: %w", core.ErrUnavailable)
	}

	for _, k := range keys {
		delete(m.data.values, k)
	}

	m.publishLocked(keys)
	return nil
}

// publishLocked never blocks a writer. When a watcher's buffer is full
// the oldest queued change is folded into the new one, so a slow reader
// still learns about every key that was touched.
func (m *Memory) publishLocked(keys []string) {
	change := Change{Namespace: m.namespace, Keys: keys, Origin: m.origin}
	for _, ch := range m.data.subs {
		select {
		case ch <- change:
			continue
		default:
		}

		merged := change
		select {
		case oldest := <-ch:
			merged = coalesce(oldest, change)
		default:
		}
		changesCoalesced.Inc()

		select {
		case ch <- merged:
		default:
		}
	}
}

// coalesce unions the keys of two changes. Mixed origins become
// anonymous so no watcher mistakes the result for its own write.
func coalesce(a, b Change) Change {
	out := Change{Namespace: b.Namespace, Origin: b.Origin}
	if a.Origin != b.Origin {
		out.Origin = ""
	}

	seen := make(map[string]struct{}, len(a.Keys)+len(b.Keys))
	for _, k := range append(append([]string(nil), a.Keys...), b.Keys...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out.Keys = append(out.Keys, k)
	}
	return out
}

func (m *Memory) Watch(ctx context.Context) (<-chan Change, error) {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()

	if m.data.closed {
		return nil, fmt.Errorf("watch: %w", core.ErrUnavailable)
	}

	id := m.data.nextID
	m.data.nextID++
	ch := make(chan Change, watchBuffer)
	m.data.subs[id] = ch

	go func() {
		<-ctx.Done()
		m.data.mu.Lock()
		defer m.data.mu.Unlock()
		if sub, ok := m.data.subs[id]; ok {
			delete(m.data.subs, id)
			close(sub)
		}
	}()

	return ch, nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	m.data.mu.Lock()
	defer m.data.mu.Unlock()

	if m.data.closed {
		return nil
	}
	m.data.closed = true
	for id, ch := range m.data.subs {
		delete(m.data.subs, id)
		close(ch)
	}
	return nil
}

var _ Store = (*Memory)(nil)
