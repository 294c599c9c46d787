// AngelaMos | 2026
// evaluator_test.go

package permission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/permission"
	"github.com/carterperez-dev/clinic-session/internal/session"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

var (
	admin = &user.User{ID: "a1", Role: user.RoleAdmin}
	staff = &user.User{ID: "s1", Role: user.RoleStaff}
)

func TestAdminBypassesMatrix(t *testing.T) {
	modules := []string{"patients", "billing", "does-not-exist", ""}
	matrices := []claims.Matrix{
		nil,
		{},
		{"patients": {}},
		{"billing": {View: false, Create: false, Edit: false, Delete: false}},
	}

	for _, perms := range matrices {
		ev := permission.New(admin, perms)
		for _, m := range modules {
			for _, a := range claims.AllActions {
				assert.True(t, ev.HasPermission(m, a), "module=%q action=%s", m, a)
			}
			assert.True(t, ev.HasAnyPermission(m))
			assert.True(t, ev.CanView(m))
			assert.True(t, ev.CanDelete(m))
		}
		assert.True(t, ev.HasPermission("patients", claims.Action("approve")))
	}
}

func TestUnknownModuleDenied(t *testing.T) {
	ev := permission.New(staff, claims.Matrix{"patients": {View: true}})

	assert.False(t, ev.CanView("billing"))
	assert.False(t, ev.CanCreate("billing"))
	assert.False(t, ev.CanEdit("billing"))
	assert.False(t, ev.CanDelete("billing"))
	assert.False(t, ev.HasAnyPermission("billing"))
	assert.False(t, ev.HasPermission("patients", claims.Action("approve")))
}

func TestCanView_AnyRightImpliesView(t *testing.T) {
	tests := []struct {
		name    string
		actions claims.Actions
		want    bool
	}{
		{"none", claims.Actions{}, false},
		{"view", claims.Actions{View: true}, true},
		{"create only", claims.Actions{Create: true}, true},
		{"edit only", claims.Actions{Edit: true}, true},
		{"delete only", claims.Actions{Delete: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := permission.New(staff, claims.Matrix{"inventory": tt.actions})
			assert.Equal(t, tt.want, ev.CanView("inventory"))
		})
	}
}

func TestTasksCreateOnly(t *testing.T) {
	ev := permission.For(session.State{
		User:        staff,
		Permissions: claims.Matrix{"tasks": {Create: true}},
	})

	assert.True(t, ev.CanView("tasks"))
	assert.True(t, ev.CanCreate("tasks"))
	assert.False(t, ev.CanEdit("tasks"))
	assert.False(t, ev.CanDelete("tasks"))
	assert.False(t, ev.HasPermission("tasks", claims.ActionView))
	assert.True(t, ev.Allows("tasks", claims.ActionView))
	assert.False(t, ev.Allows("tasks", claims.ActionEdit))
}

func TestAdminFlagsAreIndependent(t *testing.T) {
	super := &user.User{ID: "p1", Role: user.RoleStaff, IsSuperAdmin: true}

	ev := permission.New(super, claims.Matrix{})
	assert.True(t, ev.IsSuperAdmin())
	assert.False(t, ev.IsAdmin())
	assert.False(t, ev.CanView("patients"))

	ev = permission.New(admin, nil)
	assert.True(t, ev.IsAdmin())
	assert.False(t, ev.IsSuperAdmin())
}

func TestNoSession(t *testing.T) {
	ev := permission.For(session.State{})

	assert.False(t, ev.IsAdmin())
	assert.False(t, ev.IsSuperAdmin())
	assert.False(t, ev.CanView("patients"))
}

func TestOverview(t *testing.T) {
	ev := permission.New(staff, claims.Matrix{
		"tasks":    {Create: true},
		"patients": {View: true, Edit: true},
	})

	o := ev.Overview([]string{"patients", "billing"})

	assert.False(t, o.IsAdmin)
	assert.Equal(t, []permission.Summary{
		{Module: "patients", CanView: true, CanEdit: true},
		{Module: "billing"},
		{Module: "tasks", CanView: true, CanCreate: true},
	}, o.Modules)
}
