// AngelaMos | 2026
// handler.go

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 3 * time.Second

const (
	StatusOK           = "ok"
	StatusDegraded     = "degraded"
	StatusDown         = "down"
	StatusNotReady     = "not_ready"
	StatusShuttingDown = "shutting_down"
)

type Checker interface {
	Ping(ctx context.Context) error
}

// Dependency is a named readiness check. A failing Critical dependency
// takes the daemon out of service; any other failure only degrades it,
// since the stored session keeps serving while the clinic API is away.
type Dependency struct {
	Name     string
	Checker  Checker
	Critical bool
}

type Handler struct {
	deps     []Dependency
	phase    func() string
	ready    atomic.Bool
	shutdown atomic.Bool
}

// NewHandler starts not ready; the daemon flips it once the stored
// session has been restored.
func NewHandler(deps ...Dependency) *Handler {
	return &Handler{deps: deps}
}

// ReportPhase adds the session lifecycle phase to readiness output.
func (h *Handler) ReportPhase(phase func() string) {
	h.phase = phase
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Liveness)
	r.Get("/livez", h.Liveness)
	r.Get("/readyz", h.Readiness)
}

func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	if h.shutdown.Load() {
		writeStatus(w, http.StatusServiceUnavailable, Report{Status: StatusShuttingDown})
		return
	}
	writeStatus(w, http.StatusOK, Report{Status: StatusOK})
}

func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	report := Report{}
	if h.phase != nil {
		report.Session = h.phase()
	}

	switch {
	case h.shutdown.Load():
		report.Status = StatusShuttingDown
		writeStatus(w, http.StatusServiceUnavailable, report)
		return
	case !h.ready.Load():
		report.Status = StatusNotReady
		writeStatus(w, http.StatusServiceUnavailable, report)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	report.Checks = h.runChecks(ctx)
	report.Status = StatusOK
	code := http.StatusOK

	for i, c := range report.Checks {
		if c.Healthy {
			continue
		}
		if h.deps[i].Critical {
			report.Status = StatusDown
			code = http.StatusServiceUnavailable
			break
		}
		report.Status = StatusDegraded
	}

	writeStatus(w, code, report)
}

func (h *Handler) runChecks(ctx context.Context) []Check {
	checks := make([]Check, len(h.deps))

	var wg sync.WaitGroup
	for i, dep := range h.deps {
		wg.Go(func() {
			checks[i] = ping(ctx, dep)
		})
	}
	wg.Wait()

	return checks
}

func ping(ctx context.Context, dep Dependency) Check {
	c := Check{Name: dep.Name, Critical: dep.Critical}
	if dep.Checker == nil {
		c.Message = "not configured"
		return c
	}

	start := time.Now()
	err := dep.Checker.Ping(ctx)
	c.Latency = time.Since(start).Round(time.Microsecond).String()

	if err != nil {
		c.Message = "unreachable"
		return c
	}
	c.Healthy = true
	return c
}

func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) SetShutdown(shutdown bool) {
	h.shutdown.Store(shutdown)
}

func writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // best-effort response
	_ = json.NewEncoder(w).Encode(data)
}

type Report struct {
	Status  string  `json:"status"`
	Session string  `json:"session,omitempty"`
	Checks  []Check `json:"checks,omitempty"`
}

type Check struct {
	Name     string `json:"name"`
	Healthy  bool   `json:"healthy"`
	Critical bool   `json:"critical"`
	Latency  string `json:"latency,omitempty"`
	Message  string `json:"message,omitempty"`
}
