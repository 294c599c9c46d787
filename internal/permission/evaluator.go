// AngelaMos | 2026
// evaluator.go

package permission

import (
	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/session"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

// Evaluator answers permission questions for one session snapshot.
// Admins pass every module check; everyone else is looked up in the
// matrix decoded from their token, with unknown keys denied.
type Evaluator struct {
	user  *user.User
	perms claims.Matrix
}

func For(s session.State) Evaluator {
	return Evaluator{user: s.User, perms: s.Permissions}
}

func New(u *user.User, perms claims.Matrix) Evaluator {
	return Evaluator{user: u, perms: perms}
}

func (e Evaluator) HasPermission(module string, action claims.Action) bool {
	if e.IsAdmin() {
		return true
	}
	actions, _ := e.perms.Lookup(module)
	return actions.Allows(action)
}

func (e Evaluator) HasAnyPermission(module string) bool {
	if e.IsAdmin() {
		return true
	}
	actions, _ := e.perms.Lookup(module)
	return actions.Any()
}

// CanView is true with explicit view rights or any other right on the
// module.
func (e Evaluator) CanView(module string) bool {
	return e.HasPermission(module, claims.ActionView) || e.HasAnyPermission(module)
}

func (e Evaluator) CanCreate(module string) bool {
	return e.HasPermission(module, claims.ActionCreate)
}

func (e Evaluator) CanEdit(module string) bool {
	return e.HasPermission(module, claims.ActionEdit)
}

func (e Evaluator) CanDelete(module string) bool {
	return e.HasPermission(module, claims.ActionDelete)
}

func (e Evaluator) IsAdmin() bool {
	return e.user.IsAdmin()
}

func (e Evaluator) IsSuperAdmin() bool {
	return e.user != nil && e.user.IsSuperAdmin
}

// Allows is HasPermission with view widened to CanView, the rule route
// decisions use.
func (e Evaluator) Allows(module string, action claims.Action) bool {
	if action == claims.ActionView {
		return e.CanView(module)
	}
	return e.HasPermission(module, action)
}

type Summary struct {
	Module    string `json:"module"`
	CanView   bool   `json:"can_view"`
	CanCreate bool   `json:"can_create"`
	CanEdit   bool   `json:"can_edit"`
	CanDelete bool   `json:"can_delete"`
}

func (e Evaluator) Summary(module string) Summary {
	return Summary{
		Module:    module,
		CanView:   e.CanView(module),
		CanCreate: e.CanCreate(module),
		CanEdit:   e.CanEdit(module),
		CanDelete: e.CanDelete(module),
	}
}

// Overview summarises every module in modules plus those present in the
// session matrix.
type Overview struct {
	IsAdmin      bool      `json:"is_admin"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	Modules      []Summary `json:"modules"`
}

func (e Evaluator) Overview(modules []string) Overview {
	seen := make(map[string]struct{}, len(modules))
	out := Overview{
		IsAdmin:      e.IsAdmin(),
		IsSuperAdmin: e.IsSuperAdmin(),
		Modules:      make([]Summary, 0, len(modules)),
	}

	for _, m := range append(append([]string(nil), modules...), e.perms.Modules()...) {
		if _, dup := seen[m]; dup || m == "" {
			continue
		}
		seen[m] = struct{}{}
		out.Modules = append(out.Modules, e.Summary(m))
	}

	return out
}
