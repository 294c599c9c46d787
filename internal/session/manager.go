// AngelaMos | 2026
// manager.go

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/clinic-session/internal/authclient"
	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/storage"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

// Authenticator is the remote side of the session: it issues tokens and
// is the only authority on whether a token is still good.
type Authenticator interface {
	Login(ctx context.Context, creds authclient.Credentials) (*authclient.AuthResult, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (*authclient.AuthResult, error)
	Logout(ctx context.Context, token string) error
	WhoAmI(ctx context.Context, token string) (*authclient.Identity, error)
	CreateTenant(ctx context.Context, token string, req tenant.CreateRequest) (*tenant.Tenant, error)
}

// Hook runs once per authenticated generation. ctx is the generation's
// scope and is cancelled when that session ends.
type Hook func(ctx context.Context, s State)

type Options struct {
	Decoder           claims.Decoder
	Logger            *slog.Logger
	RevalidateTimeout time.Duration
	LogoutTimeout     time.Duration
	// Origin identifies this process on the storage change feed.
	Origin string
	// ResubscribeDelay is the first wait before reopening a change feed
	// that closed. It grows exponentially up to a minute.
	ResubscribeDelay time.Duration
}

const (
	defaultRevalidateTimeout = 10 * time.Second
	defaultLogoutTimeout     = 3 * time.Second
	defaultResubscribeDelay  = 500 * time.Millisecond
	maxResubscribeDelay      = time.Minute
)

// Manager funnels every session mutation through named operations.
// opMu serialises memory and durable writes; network calls happen
// outside it and their results are applied only if the generation they
// started in is still current.
type Manager struct {
	store    *Store
	durable  storage.Store
	auth     Authenticator
	decoder  claims.Decoder
	validate *validator.Validate
	logger   *slog.Logger
	tracer   trace.Tracer
	origin   string

	revalidateTimeout time.Duration
	logoutTimeout     time.Duration
	resubscribeDelay  time.Duration

	opMu sync.Mutex
	bg   sync.WaitGroup

	hooksMu  sync.Mutex
	hooks    []Hook
	hooksRun sync.WaitGroup
}

func NewManager(durable storage.Store, auth Authenticator, opts Options) *Manager {
	if opts.Decoder == nil {
		opts.Decoder = claims.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RevalidateTimeout <= 0 {
		opts.RevalidateTimeout = defaultRevalidateTimeout
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = defaultLogoutTimeout
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = defaultResubscribeDelay
	}

	return &Manager{
		store:             NewStore(),
		durable:           durable,
		auth:              auth,
		decoder:           opts.Decoder,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		logger:            opts.Logger.With("component", "session"),
		tracer:            otel.Tracer("github.com/carterperez-dev/clinic-session/internal/session"),
		origin:            opts.Origin,
		revalidateTimeout: opts.RevalidateTimeout,
		logoutTimeout:     opts.LogoutTimeout,
		resubscribeDelay:  opts.ResubscribeDelay,
	}
}

func (m *Manager) Snapshot() State {
	return m.store.Snapshot()
}

func (m *Manager) Phase() Phase {
	return m.store.Phase()
}

// OnSession registers fn for every authenticated generation that begins
// after the call.
func (m *Manager) OnSession(fn Hook) {
	m.hooksMu.Lock()
	defer m.hooksMu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Restore loads the stored snapshot and makes it live immediately. The
// token is revalidated in the background; Wait blocks until that is done.
func (m *Manager) Restore(ctx context.Context) error {
	m.opMu.Lock()

	snap, err := loadSnapshot(ctx, m.durable)
	if err != nil {
		m.store.finishLoading()
		m.opMu.Unlock()
		return fmt.Errorf("restore: %w", err)
	}

	if snap.Token == "" {
		m.store.finishLoading()
		m.opMu.Unlock()
		m.logger.Debug("no stored session")
		return nil
	}

	gen, scope := m.adoptLocked(snap, true)
	m.opMu.Unlock()

	m.logger.Info("session restored from storage",
		"token", core.Fingerprint(snap.Token),
		"generation", gen,
	)

	m.revalidate(scope, gen, snap.Token)
	return nil
}

// adoptLocked makes a stored snapshot live as a new generation. Only the
// startup restore counts as loading.
func (m *Manager) adoptLocked(snap snapshot, loading bool) (uint64, context.Context) {
	perms := m.decoder.Decode(snap.Token)
	return m.store.begin(PhaseRestoring, func(s *State) {
		s.Token = snap.Token
		s.User = snap.User.Clone()
		s.Tenant = snap.Tenant.Clone()
		s.Permissions = perms
		s.Loading = loading
	})
}

func (m *Manager) revalidate(scope context.Context, gen uint64, token string) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()

		ctx, cancel := context.WithTimeout(scope, m.revalidateTimeout)
		defer cancel()

		ctx, span := m.tracer.Start(ctx, "session.revalidate",
			trace.WithAttributes(attribute.Int64("session.generation", int64(gen))))
		defer span.End()

		id, err := m.auth.WhoAmI(ctx, token)

		m.opMu.Lock()

		if scope.Err() != nil || m.store.Generation() != gen {
			m.store.update(gen, func(s *State) { s.Loading = false })
			m.opMu.Unlock()
			revalidationsTotal.WithLabelValues(resultDiscarded).Inc()
			core.AddSpanEvent(ctx, "discarded")
			m.logger.Debug("stale revalidation discarded", "generation", gen)
			return
		}

		if err != nil {
			prev, next := m.clearLocked(ctx, reasonRevalidate, true)
			m.opMu.Unlock()

			revalidationsTotal.WithLabelValues(resultUnreachable).Inc()
			core.SetSpanError(ctx, err)
			m.logger.Warn("revalidation failed, session ended",
				"token", core.Fingerprint(token),
				"error", err,
			)
			m.finishLogout(ctx, prev, next)
			return
		}

		m.persistIdentityLocked(ctx, id.User, id.Tenant)
		m.store.update(gen, func(s *State) {
			s.User = id.User.Clone()
			s.Tenant = id.Tenant.Clone()
			s.Loading = false
		})
		m.store.setPhase(gen, PhaseAuthenticated)
		state := m.store.Snapshot()
		m.opMu.Unlock()

		revalidationsTotal.WithLabelValues(resultConfirmed).Inc()
		m.announce(scope, state)
	}()
}

func (m *Manager) persistIdentityLocked(ctx context.Context, u *user.User, t *tenant.Tenant) {
	values, err := snapshot{User: u, Tenant: t}.encode()
	if err != nil {
		m.logger.Warn("encode identity", "error", err)
		return
	}
	delete(values, storage.KeyToken)

	if err := m.durable.SetMany(context.WithoutCancel(ctx), values); err != nil {
		m.logger.Warn("persist identity", "error", err)
	}
}

func (m *Manager) Login(ctx context.Context, creds authclient.Credentials) (State, error) {
	if err := m.validate.Struct(creds); err != nil {
		return State{}, fmt.Errorf("login: %w: %w", core.ErrInvalidInput, err)
	}

	ctx, span := m.tracer.Start(ctx, "session.login")
	defer span.End()

	res, err := m.auth.Login(ctx, creds)
	if err != nil {
		loginsTotal.WithLabelValues(resultFailure).Inc()
		core.SetSpanError(ctx, err)
		return State{}, err
	}

	return m.install(ctx, res)
}

func (m *Manager) Register(ctx context.Context, req authclient.RegisterRequest) (State, error) {
	if err := m.validate.Struct(req); err != nil {
		return State{}, fmt.Errorf("register: %w: %w", core.ErrInvalidInput, err)
	}

	ctx, span := m.tracer.Start(ctx, "session.register")
	defer span.End()

	res, err := m.auth.Register(ctx, req)
	if err != nil {
		loginsTotal.WithLabelValues(resultFailure).Inc()
		core.SetSpanError(ctx, err)
		return State{}, err
	}

	return m.install(ctx, res)
}

// install persists the new identity first, then swaps token, user, tenant
// and permissions in one generation.
func (m *Manager) install(ctx context.Context, res *authclient.AuthResult) (State, error) {
	values, err := snapshot{Token: res.Token, User: res.User, Tenant: res.Tenant}.encode()
	if err != nil {
		return State{}, err
	}
	perms := m.decoder.Decode(res.Token)

	m.opMu.Lock()
	if err := m.durable.SetMany(ctx, values); err != nil {
		m.opMu.Unlock()
		loginsTotal.WithLabelValues(resultFailure).Inc()
		return State{}, fmt.Errorf("persist session: %w", err)
	}

	gen, scope := m.store.begin(PhaseAuthenticated, func(s *State) {
		s.Token = res.Token
		s.User = res.User.Clone()
		s.Tenant = res.Tenant.Clone()
		s.Permissions = perms
	})
	state := m.store.Snapshot()
	m.opMu.Unlock()

	loginsTotal.WithLabelValues(resultSuccess).Inc()
	m.logger.Info("session started",
		"user_id", res.User.ID,
		"token", core.Fingerprint(res.Token),
		"generation", gen,
	)

	m.announce(scope, state)
	return state, nil
}

// Logout always succeeds locally. The clinic API is told afterwards,
// best effort, with the token captured before the state was cleared.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	prev, gen := m.clearLocked(ctx, reasonUser, true)
	m.opMu.Unlock()

	m.logger.Info("session ended", "token", core.Fingerprint(prev), "generation", gen)
	m.finishLogout(ctx, prev, gen)
}

// clearLocked starts an empty generation and optionally purges storage.
// It returns the token that was live before.
func (m *Manager) clearLocked(ctx context.Context, reason string, purge bool) (string, uint64) {
	prev := m.store.Snapshot().Token

	gen, _ := m.store.begin(PhaseLoggingOut, func(*State) {})

	if purge {
		if err := m.durable.Delete(context.WithoutCancel(ctx), storage.SessionKeys...); err != nil {
			m.logger.Warn("purge stored session", "error", err)
		}
	}

	logoutsTotal.WithLabelValues(reason).Inc()
	return prev, gen
}

func (m *Manager) finishLogout(ctx context.Context, token string, gen uint64) {
	if token != "" {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		if err := m.auth.Logout(notifyCtx, token); err != nil {
			m.logger.Debug("logout notify failed", "error", err)
		}
		cancel()
	}
	m.store.setPhase(gen, PhaseUnauthenticated)
}

// UpdateUser applies a profile edit. Identity and authorization fields
// (id, role, super admin) stay as the clinic API reported them, and
// permissions are left alone.
func (m *Manager) UpdateUser(ctx context.Context, u *user.User) (State, error) {
	if u == nil {
		return State{}, fmt.Errorf("update user: %w", core.ErrInvalidInput)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.store.Snapshot()
	if !cur.IsAuthenticated() {
		return State{}, fmt.Errorf("update user: %w", core.ErrUnauthorized)
	}

	edited := u.Clone()
	edited.ID = cur.User.ID
	edited.Role = cur.User.Role
	edited.IsSuperAdmin = cur.User.IsSuperAdmin

	values, err := encodeOne(storage.KeyUser, edited)
	if err != nil {
		return State{}, err
	}
	if err := m.durable.SetMany(ctx, values); err != nil {
		return State{}, fmt.Errorf("persist user: %w", err)
	}

	m.store.update(cur.Generation, func(s *State) {
		s.User = edited
	})
	return m.store.Snapshot(), nil
}

func (m *Manager) UpdateTenant(ctx context.Context, t *tenant.Tenant) (State, error) {
	if t == nil {
		return State{}, fmt.Errorf("update tenant: %w", core.ErrInvalidInput)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.store.Snapshot()
	if !cur.IsAuthenticated() {
		return State{}, fmt.Errorf("update tenant: %w", core.ErrUnauthorized)
	}
	return m.setTenantLocked(ctx, cur.Generation, t)
}

func (m *Manager) setTenantLocked(ctx context.Context, gen uint64, t *tenant.Tenant) (State, error) {
	values, err := encodeOne(storage.KeyTenant, t)
	if err != nil {
		return State{}, err
	}
	if err := m.durable.SetMany(ctx, values); err != nil {
		return State{}, fmt.Errorf("persist tenant: %w", err)
	}

	m.store.update(gen, func(s *State) {
		s.Tenant = t.Clone()
	})
	return m.store.Snapshot(), nil
}

// CreateTenant asks the clinic API for a new clinic and installs it as
// the session tenant, unless the session changed while the call was in
// flight.
func (m *Manager) CreateTenant(ctx context.Context, req tenant.CreateRequest) (State, error) {
	if err := m.validate.Struct(req); err != nil {
		return State{}, fmt.Errorf("create tenant: %w: %w", core.ErrInvalidInput, err)
	}

	cur := m.store.Snapshot()
	if !cur.IsAuthenticated() {
		return State{}, fmt.Errorf("create tenant: %w", core.ErrUnauthorized)
	}

	t, err := m.auth.CreateTenant(ctx, cur.Token, req)
	if err != nil {
		return State{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.store.Generation() != cur.Generation {
		return State{}, fmt.Errorf("create tenant: %w", core.ErrSessionClosed)
	}
	return m.setTenantLocked(ctx, cur.Generation, t)
}

// Sync follows the storage change feed and reconciles with writes made
// by other processes sharing the namespace. A feed that closes under it
// is reopened with exponential backoff, followed by a full resync to
// catch writes missed in between. It returns nil once ctx ends.
func (m *Manager) Sync(ctx context.Context) error {
	changes, err := m.durable.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch storage: %w", err)
	}

	gap := m.resubscribeBackoff()
	for {
		if m.follow(ctx, changes) {
			gap.Reset()
		}
		if ctx.Err() != nil {
			return nil
		}

		feedRestartsTotal.Inc()
		m.logger.Warn("storage change feed closed, resubscribing")

		if err := sleepCtx(ctx, gap.NextBackOff()); err != nil {
			return nil
		}

		changes, err = backoff.RetryNotifyWithData(
			func() (<-chan storage.Change, error) { return m.durable.Watch(ctx) },
			backoff.WithContext(m.resubscribeBackoff(), ctx),
			func(err error, next time.Duration) {
				m.logger.Warn("resubscribe failed", "error", err, "retry_in", next)
			},
		)
		if err != nil {
			return nil
		}

		if err := m.resync(ctx, storage.Change{Keys: storage.SessionKeys}); err != nil {
			m.logger.Warn("resync after resubscribe failed", "error", err)
		}
	}
}

func (m *Manager) resubscribeBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.resubscribeDelay
	b.MaxInterval = maxResubscribeDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// follow drains changes until the feed closes or ctx ends and reports
// whether anything arrived.
func (m *Manager) follow(ctx context.Context, changes <-chan storage.Change) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case change, ok := <-changes:
			if !ok {
				return received
			}
			received = true
			if change.Origin == m.origin {
				continue
			}
			if err := m.resync(ctx, change); err != nil {
				m.logger.Warn("resync failed", "error", err)
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) resync(ctx context.Context, change storage.Change) error {
	m.opMu.Lock()

	snap, err := loadSnapshot(ctx, m.durable)
	if err != nil {
		m.opMu.Unlock()
		return err
	}
	cur := m.store.Snapshot()

	switch {
	case snap.Token == "":
		if cur.Token == "" {
			m.opMu.Unlock()
			return nil
		}
		_, gen := m.clearLocked(ctx, reasonExternal, false)
		m.store.setPhase(gen, PhaseUnauthenticated)
		m.opMu.Unlock()
		m.logger.Info("session ended by another process", "origin", change.Origin)

	case snap.Token != cur.Token:
		gen, scope := m.adoptLocked(snap, false)
		m.opMu.Unlock()
		m.logger.Info("session replaced by another process",
			"origin", change.Origin,
			"token", core.Fingerprint(snap.Token),
		)
		m.revalidate(scope, gen, snap.Token)

	default:
		m.store.update(cur.Generation, func(s *State) {
			if change.Touches(storage.KeyUser) && snap.User != nil {
				s.User = snap.User
			}
			if change.Touches(storage.KeyTenant) && snap.Tenant != nil {
				s.Tenant = snap.Tenant
			}
		})
		m.opMu.Unlock()
	}

	return nil
}

func (m *Manager) announce(scope context.Context, state State) {
	if scope.Err() != nil {
		return
	}

	m.hooksMu.Lock()
	hooks := append([]Hook(nil), m.hooks...)
	m.hooksMu.Unlock()

	for _, fn := range hooks {
		m.hooksRun.Add(1)
		go func(fn Hook, s State) {
			defer m.hooksRun.Done()
			fn(scope, s)
		}(fn, state.clone())
	}
}

// Wait blocks until in-flight revalidations have finished.
func (m *Manager) Wait() {
	m.bg.Wait()
}

// Close ends the current scope and waits for background work. The
// session stays in storage so the next start can restore it.
func (m *Manager) Close() {
	m.store.Close()
	m.bg.Wait()
	m.hooksRun.Wait()
}

