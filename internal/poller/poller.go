// AngelaMos | 2026
// poller.go

package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/clinic-session/internal/session"
)

var refreshFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "clinicd_badge_refresh_failures_total",
	Help: "Badge counter fetches that failed, by module.",
}, []string{"module"})

type Fetcher interface {
	Badge(ctx context.Context, token, path string) (int, error)
}

// Source is a module badge and the API path that answers its count.
type Source struct {
	Module string
	Path   string
}

// Poller keeps navigation badge counters fresh for the live session.
// Counts belong to one session generation and are dropped when it ends.
type Poller struct {
	fetcher  Fetcher
	sources  []Source
	interval time.Duration
	logger   *slog.Logger

	mu         sync.RWMutex
	generation uint64
	counts     map[string]int
}

func New(fetcher Fetcher, sources []Source, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher:  fetcher,
		sources:  sources,
		interval: interval,
		logger:   logger.With("component", "poller"),
		counts:   make(map[string]int),
	}
}

// Run refreshes every source now and then on each tick until scope ends.
// Its signature matches session.Hook.
func (p *Poller) Run(scope context.Context, s session.State) {
	if len(p.sources) == 0 || p.interval <= 0 {
		return
	}

	p.mu.Lock()
	p.generation = s.Generation
	p.counts = make(map[string]int, len(p.sources))
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.reset(s.Generation)

	p.refresh(scope, s)
	for {
		select {
		case <-scope.Done():
			return
		case <-ticker.C:
			p.refresh(scope, s)
		}
	}
}

func (p *Poller) refresh(scope context.Context, s session.State) {
	for _, src := range p.sources {
		count, err := p.fetcher.Badge(scope, s.Token, src.Path)
		if scope.Err() != nil {
			return
		}
		if err != nil {
			refreshFailures.WithLabelValues(src.Module).Inc()
			p.logger.Debug("badge refresh failed", "module", src.Module, "error", err)
			continue
		}
		p.apply(scope, s.Generation, src.Module, count)
	}
}

func (p *Poller) apply(scope context.Context, generation uint64, module string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if scope.Err() != nil || p.generation != generation {
		return
	}
	p.counts[module] = count
}

func (p *Poller) reset(generation uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.generation == generation {
		p.counts = make(map[string]int)
	}
}

func (p *Poller) Count(module string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.counts[module]
	return n, ok
}

func (p *Poller) Counts() map[string]int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]int, len(p.counts))
	for k, v := range p.counts {
		out[k] = v
	}
	return out
}
