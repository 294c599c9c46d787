// AngelaMos | 2026
// guard.go

package gate

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/permission"
	"github.com/carterperez-dev/clinic-session/internal/session"
)

type contextKey string

const stateKey contextKey = "session_state"

// ModuleParam is the chi URL parameter RequireModule reads.
const ModuleParam = "module"

type Source interface {
	Snapshot() session.State
}

// Guard turns session state into chi middleware. Each request sees one
// snapshot, stored in its context for the handler.
type Guard struct {
	src Source
}

func NewGuard(src Source) *Guard {
	return &Guard{src: src}
}

// Attach stores the current snapshot in the request context without
// enforcing anything.
func (g *Guard) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, g.withState(r))
	})
}

func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return g.require(func(permission.Evaluator, *http.Request) bool { return true })(next)
}

func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return g.require(func(ev permission.Evaluator, _ *http.Request) bool {
		return ev.IsAdmin()
	})(next)
}

func (g *Guard) RequireSuperAdmin(next http.Handler) http.Handler {
	return g.require(func(ev permission.Evaluator, _ *http.Request) bool {
		return ev.IsSuperAdmin()
	})(next)
}

// RequireModule checks action against the {module} URL parameter.
func (g *Guard) RequireModule(action claims.Action) func(http.Handler) http.Handler {
	return g.require(func(ev permission.Evaluator, r *http.Request) bool {
		module := chi.URLParam(r, ModuleParam)
		return module != "" && ev.Allows(module, action)
	})
}

func (g *Guard) require(
	allowed func(permission.Evaluator, *http.Request) bool,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = g.withState(r)
			s := StateFrom(r.Context())

			if !s.IsAuthenticated() {
				core.JSONError(w, core.UnauthorizedError("no active session"))
				return
			}

			if !allowed(permission.For(s), r) {
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) withState(r *http.Request) *http.Request {
	if _, ok := r.Context().Value(stateKey).(session.State); ok {
		return r
	}
	return r.WithContext(WithState(r.Context(), g.src.Snapshot()))
}

func WithState(ctx context.Context, s session.State) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

// StateFrom returns the snapshot attached to ctx, or an empty state.
func StateFrom(ctx context.Context) session.State {
	if s, ok := ctx.Value(stateKey).(session.State); ok {
		return s
	}
	return session.State{}
}
