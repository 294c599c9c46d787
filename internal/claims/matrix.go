// AngelaMos | 2026
// matrix.go

package claims

import (
	"sort"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
)

var AllActions = []Action{ActionView, ActionCreate, ActionEdit, ActionDelete}

func ParseAction(s string) (Action, bool) {
	for _, a := range AllActions {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

type Actions struct {
	View   bool `json:"view"`
	Create bool `json:"create"`
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// Allows reports whether the flag for action is set. Unknown actions are
// denied.
func (a Actions) Allows(action Action) bool {
	switch action {
	case ActionView:
		return a.View
	case ActionCreate:
		return a.Create
	case ActionEdit:
		return a.Edit
	case ActionDelete:
		return a.Delete
	default:
		return false
	}
}

func (a Actions) Any() bool {
	return a.View || a.Create || a.Edit || a.Delete
}

// Matrix maps a module name such as "patients" to its action flags.
type Matrix map[string]Actions

func (m Matrix) Lookup(module string) (Actions, bool) {
	a, ok := m[module]
	return a, ok
}

func (m Matrix) Clone() Matrix {
	out := make(Matrix, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Matrix) Modules() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
