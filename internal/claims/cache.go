// AngelaMos | 2026
// cache.go

package claims

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinicd_claims_cache_hits_total",
		Help: "Decoded permission matrices served from cache.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clinicd_claims_cache_misses_total",
		Help: "Tokens that had to be decoded.",
	})
)

// CachingDecoder memoises decoded matrices by token hash. It hands out
// clones so callers never share the cached map.
type CachingDecoder struct {
	next  Decoder
	cache *expirable.LRU[string, Matrix]
}

func NewCachingDecoder(next Decoder, size int, ttl time.Duration) *CachingDecoder {
	if next == nil {
		next = Default
	}
	if size <= 0 {
		size = 64
	}
	return &CachingDecoder{
		next:  next,
		cache: expirable.NewLRU[string, Matrix](size, nil, ttl),
	}
}

func (d *CachingDecoder) Decode(token string) Matrix {
	if token == "" {
		return Matrix{}
	}

	key := core.HashToken(token)
	if m, ok := d.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return m.Clone()
	}
	cacheMissesTotal.Inc()

	m := d.next.Decode(token)
	d.cache.Add(key, m.Clone())
	return m
}

func (d *CachingDecoder) Len() int {
	return d.cache.Len()
}
