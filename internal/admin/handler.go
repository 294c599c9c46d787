// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/session"
)

// Handler serves diagnostics for admin sessions of this daemon: which
// storage backend holds the session, its pool health and the runtime.
type Handler struct {
	driver      string
	namespace   string
	storagePing func(ctx context.Context) error
	dbStats     func() sql.DBStats
	redisStats  func() *redis.PoolStats
	cacheLen    func() int
	session     SessionInfo
}

type SessionInfo interface {
	Snapshot() session.State
	Phase() session.Phase
}

type HandlerConfig struct {
	Driver      string
	Namespace   string
	StoragePing func(ctx context.Context) error
	DBStats     func() sql.DBStats
	RedisStats  func() *redis.PoolStats
	CacheLen    func() int
	Session     SessionInfo
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		driver:      cfg.Driver,
		namespace:   cfg.Namespace,
		storagePing: cfg.StoragePing,
		dbStats:     cfg.DBStats,
		redisStats:  cfg.RedisStats,
		cacheLen:    cfg.CacheLen,
		session:     cfg.Session,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	healthy := true
	if h.storagePing != nil {
		if err := h.storagePing(r.Context()); err != nil {
			healthy = false
		}
	}

	response := SystemStatsResponse{
		Storage: StorageStatus{
			Driver:    h.driver,
			Namespace: h.namespace,
			Healthy:   healthy,
			Database:  h.getDBStats(),
			Redis:     h.getRedisStats(),
		},
		Session: h.getSessionStats(),
		Runtime: readRuntimeStats(),
	}

	core.OK(w, response)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, readRuntimeStats())
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}

func (h *Handler) getSessionStats() SessionStats {
	var stats SessionStats
	if h.cacheLen != nil {
		stats.ClaimsCached = h.cacheLen()
	}
	if h.session == nil {
		return stats
	}

	s := h.session.Snapshot()
	stats.Phase = string(h.session.Phase())
	stats.Generation = s.Generation
	stats.Loading = s.Loading
	stats.Modules = len(s.Permissions)
	return stats
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type SystemStatsResponse struct {
	Storage StorageStatus `json:"storage"`
	Session SessionStats  `json:"session"`
	Runtime RuntimeStats  `json:"runtime"`
}

type StorageStatus struct {
	Driver    string          `json:"driver"`
	Namespace string          `json:"namespace"`
	Healthy   bool            `json:"healthy"`
	Database  *DBPoolStats    `json:"database,omitempty"`
	Redis     *RedisPoolStats `json:"redis,omitempty"`
}

type SessionStats struct {
	Phase        string `json:"phase"`
	Generation   uint64 `json:"generation"`
	Loading      bool   `json:"loading"`
	Modules      int    `json:"modules"`
	ClaimsCached int    `json:"claims_cached"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}
