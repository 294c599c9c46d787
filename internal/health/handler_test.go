// AngelaMos | 2026
// handler_test.go

package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/health"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func get(t *testing.T, h *health.Handler, path string) (int, health.Report) {
	t.Helper()

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body health.Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestReadiness(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	h := health.NewHandler(
		health.Dependency{Name: "storage", Checker: ok, Critical: true},
		health.Dependency{Name: "clinic_api", Checker: down},
	)
	h.ReportPhase(func() string { return "restoring" })

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusNotReady, body.Status)
	assert.Equal(t, "restoring", body.Session)

	h.SetReady(true)
	code, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusDegraded, body.Status)
	require.Len(t, body.Checks, 2)
	assert.True(t, body.Checks[0].Healthy)
	assert.False(t, body.Checks[1].Healthy)
	assert.Equal(t, "unreachable", body.Checks[1].Message)

	h = health.NewHandler(health.Dependency{Name: "storage", Checker: ok, Critical: true})
	h.SetReady(true)
	code, body = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusOK, body.Status)
}

func TestReadiness_CriticalDown(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	h := health.NewHandler(
		health.Dependency{Name: "storage", Checker: down, Critical: true},
		health.Dependency{Name: "clinic_api"},
	)
	h.SetReady(true)

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, health.StatusDown, body.Status)
	assert.Equal(t, "not configured", body.Checks[1].Message)
}

func TestLiveness(t *testing.T) {
	h := health.NewHandler()

	code, body := get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	h.SetShutdown(true)
	code, _ = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
