// AngelaMos | 2026
// handler.go

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/clinic-session/internal/authclient"
	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/gate"
	"github.com/carterperez-dev/clinic-session/internal/permission"
	"github.com/carterperez-dev/clinic-session/internal/session"
	"github.com/carterperez-dev/clinic-session/internal/subscription"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

const maxBodyBytes = 64 << 10

type Sessions interface {
	Snapshot() session.State
	Phase() session.Phase
	Login(ctx context.Context, creds authclient.Credentials) (session.State, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (session.State, error)
	Logout(ctx context.Context)
	UpdateUser(ctx context.Context, u *user.User) (session.State, error)
	UpdateTenant(ctx context.Context, t *tenant.Tenant) (session.State, error)
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (session.State, error)
}

type BadgeCounter interface {
	Count(module string) (int, bool)
}

type Config struct {
	Sessions   Sessions
	Navigation []gate.Item
	Badges     BadgeCounter
	Now        func() time.Time
}

type Handler struct {
	sessions   Sessions
	guard      *gate.Guard
	navigation []gate.Item
	modules    []string
	badges     BadgeCounter
	dismissals *gate.Dismissals
	validator  *validator.Validate
	now        func() time.Time
}

func NewHandler(cfg Config) *Handler {
	if cfg.Navigation == nil {
		cfg.Navigation = gate.DefaultNavigation()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Handler{
		sessions:   cfg.Sessions,
		guard:      gate.NewGuard(cfg.Sessions),
		navigation: cfg.Navigation,
		modules:    gate.Modules(cfg.Navigation),
		badges:     cfg.Badges,
		dismissals: gate.NewDismissals(),
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		now:        cfg.Now,
	}
}

func (h *Handler) Guard() *gate.Guard {
	return h.guard
}

// RegisterRoutes mounts the session contract. authLimit wraps the
// credential endpoints.
func (h *Handler) RegisterRoutes(r chi.Router, authLimit func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Attach)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.With(authLimit).Post("/login", h.Login)
			r.With(authLimit).Post("/register", h.Register)
			r.Post("/logout", h.Logout)

			r.Group(func(r chi.Router) {
				r.Use(h.guard.RequireSession)
				r.Get("/token", h.GetToken)
				r.Put("/user", h.UpdateUser)
				r.Put("/tenant", h.UpdateTenant)
				r.Post("/tenants", h.CreateTenant)
			})
		})

		r.Get("/permissions", h.GetPermissions)
		r.Get("/permissions/{module}", h.GetModulePermissions)
		r.Get("/subscription", h.GetSubscription)
		r.Get("/navigation", h.GetNavigation)
		r.Get("/gate/{module}", h.Decide)

		r.Get("/banner", h.GetBanner)
		r.With(h.guard.RequireAdmin).Post("/banner/dismiss", h.DismissBanner)

		r.With(h.guard.RequireModule(claims.ActionView)).
			Get("/modules/{module}/badge", h.GetBadge)
	})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	core.OK(w, toSessionResponse(gate.StateFrom(r.Context()), h.sessions.Phase()))
}

func (h *Handler) GetToken(w http.ResponseWriter, r *http.Request) {
	core.OK(w, TokenResponse{Token: gate.StateFrom(r.Context()).Token})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req authclient.Credentials
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, toSessionResponse(s, h.sessions.Phase()))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req authclient.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, toSessionResponse(s, h.sessions.Phase()))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context())
	core.NoContent(w)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	if current := gate.StateFrom(r.Context()).User; current != nil && current.ID != req.ID {
		core.BadRequest(w, "user id does not match the session")
		return
	}

	s, err := h.sessions.UpdateUser(r.Context(), req.ToUser())
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, toSessionResponse(s, h.sessions.Phase()))
}

func (h *Handler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	if current := gate.StateFrom(r.Context()).Tenant; current != nil && current.ID != req.ID {
		core.BadRequest(w, "tenant id does not match the session")
		return
	}

	s, err := h.sessions.UpdateTenant(r.Context(), req.ToTenant())
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, toSessionResponse(s, h.sessions.Phase()))
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenant.CreateRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.sessions.CreateTenant(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, toSessionResponse(s, h.sessions.Phase()))
}

func (h *Handler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	ev := permission.For(gate.StateFrom(r.Context()))
	core.OK(w, ev.Overview(h.modules))
}

func (h *Handler) GetModulePermissions(w http.ResponseWriter, r *http.Request) {
	ev := permission.For(gate.StateFrom(r.Context()))
	core.OK(w, ev.Summary(chi.URLParam(r, gate.ModuleParam)))
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	core.OK(w, subscription.Project(gate.StateFrom(r.Context()).Tenant, h.now()))
}

func (h *Handler) GetNavigation(w http.ResponseWriter, r *http.Request) {
	s := gate.StateFrom(r.Context())
	if !s.IsAuthenticated() {
		core.OK(w, []gate.Item{})
		return
	}
	core.OK(w, gate.FilterNav(h.navigation, permission.For(s)))
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	action := claims.ActionView
	if raw := r.URL.Query().Get("action"); raw != "" {
		parsed, ok := claims.ParseAction(raw)
		if !ok {
			core.BadRequest(w, "action must be one of: view create edit delete")
			return
		}
		action = parsed
	}

	s := gate.StateFrom(r.Context())
	v := gate.Decide(s, chi.URLParam(r, gate.ModuleParam), action, h.now())
	v.Banner = h.dismissals.Filter(s.Generation, v.Banner)

	core.OK(w, v)
}

func (h *Handler) GetBanner(w http.ResponseWriter, r *http.Request) {
	s := gate.StateFrom(r.Context())
	b := h.banner(s)
	if b == nil {
		core.NoContent(w)
		return
	}
	core.OK(w, b)
}

func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	s := gate.StateFrom(r.Context())
	if b := h.banner(s); b != nil {
		h.dismissals.Dismiss(s.Generation, b.Status)
	}
	core.NoContent(w)
}

func (h *Handler) banner(s session.State) *gate.Banner {
	b := gate.BannerFor(permission.For(s), subscription.Project(s.Tenant, h.now()))
	return h.dismissals.Filter(s.Generation, b)
}

func (h *Handler) GetBadge(w http.ResponseWriter, r *http.Request) {
	module := chi.URLParam(r, gate.ModuleParam)
	if h.badges == nil {
		core.NotFound(w, "badge")
		return
	}

	count, ok := h.badges.Count(module)
	if !ok {
		core.NotFound(w, "badge")
		return
	}

	core.OK(w, BadgeResponse{Module: module, Count: count})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, core.FormatValidationError(err))
	case errors.Is(err, authclient.ErrInvalidCredentials):
		core.JSONError(w, core.UnauthorizedError("invalid email or password"))
	case errors.Is(err, authclient.ErrEmailExists):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, core.ErrUnauthorized):
		core.JSONError(w, core.UnauthorizedError("no active session"))
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrForbidden):
		core.JSONError(w, core.ForbiddenError(""))
	case errors.Is(err, core.ErrSessionClosed):
		core.JSONError(w, core.NewAppError(err, "session changed during the request", http.StatusConflict, "SESSION_CHANGED"))
	case errors.Is(err, core.ErrUnavailable):
		core.JSONError(w, core.UpstreamError(err))
	default:
		core.InternalServerError(w, err)
	}
}
