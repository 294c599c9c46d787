// AngelaMos | 2026
// nav.go

package gate

import (
	"fmt"

	"github.com/carterperez-dev/clinic-session/internal/config"
	"github.com/carterperez-dev/clinic-session/internal/permission"
)

type Requirement string

const (
	RequiresView       Requirement = "view"
	RequiresAdmin      Requirement = "admin"
	RequiresSuperAdmin Requirement = "super_admin"
	RequiresNone       Requirement = "none"
)

// Item is one navigation entry. Module is the permission key checked for
// RequiresView; entries that only group children may leave it empty.
type Item struct {
	Key      string      `json:"key"`
	Label    string      `json:"label"`
	Path     string      `json:"path,omitempty"`
	Module   string      `json:"module,omitempty"`
	Requires Requirement `json:"requires"`
	Children []Item      `json:"children,omitempty"`
}

func DefaultNavigation() []Item {
	return []Item{
		{Key: "dashboard", Label: "Dashboard", Path: "/", Requires: RequiresNone},
		{Key: "patients", Label: "Patients", Path: "/patients", Module: "patients", Requires: RequiresView},
		{Key: "appointments", Label: "Appointments", Path: "/appointments", Module: "appointments", Requires: RequiresView},
		{Key: "treatments", Label: "Treatments", Path: "/treatments", Module: "treatments", Requires: RequiresView},
		{Key: "billing", Label: "Billing", Path: "/billing", Module: "billing", Requires: RequiresView},
		{Key: "inventory", Label: "Inventory", Path: "/inventory", Module: "inventory", Requires: RequiresView},
		{Key: "tasks", Label: "Tasks", Path: "/tasks", Module: "tasks", Requires: RequiresView},
		{
			Key: "reports", Label: "Reports", Requires: RequiresNone,
			Children: []Item{
				{Key: "reports.financial", Label: "Financial", Path: "/reports/financial", Module: "reports", Requires: RequiresView},
				{Key: "reports.clinical", Label: "Clinical", Path: "/reports/clinical", Module: "treatments", Requires: RequiresView},
			},
		},
		{
			Key: "settings", Label: "Settings", Requires: RequiresNone,
			Children: []Item{
				{Key: "settings.users", Label: "Users", Path: "/settings/users", Requires: RequiresAdmin},
				{Key: "settings.billing", Label: "Subscription", Path: "/settings/billing", Requires: RequiresAdmin},
			},
		},
		{
			Key: "platform", Label: "Platform", Requires: RequiresSuperAdmin,
			Children: []Item{
				{Key: "platform.tenants", Label: "Clinics", Path: "/platform/tenants", Requires: RequiresSuperAdmin},
			},
		},
	}
}

// FromConfig converts configured navigation. An empty list yields the
// default tree.
func FromConfig(items []config.NavItemConfig) ([]Item, error) {
	if len(items) == 0 {
		return DefaultNavigation(), nil
	}

	out := make([]Item, 0, len(items))
	for _, c := range items {
		item := Item{
			Key:      c.Key,
			Label:    c.Label,
			Path:     c.Path,
			Module:   c.Module,
			Requires: Requirement(c.Requires),
		}

		if item.Key == "" {
			return nil, fmt.Errorf("navigation item %q: key is required", c.Label)
		}

		switch item.Requires {
		case "":
			item.Requires = RequiresNone
			if item.Module != "" {
				item.Requires = RequiresView
			}
		case RequiresView:
			if item.Module == "" {
				return nil, fmt.Errorf("navigation item %q: view requires a module", c.Key)
			}
		case RequiresAdmin, RequiresSuperAdmin, RequiresNone:
		default:
			return nil, fmt.Errorf("navigation item %q: unknown requirement %q", c.Key, c.Requires)
		}

		if len(c.Children) > 0 {
			children, err := FromConfig(c.Children)
			if err != nil {
				return nil, err
			}
			item.Children = children
		}

		out = append(out, item)
	}

	return out, nil
}

// FilterNav keeps the entries ev may see. A group survives only if its
// own requirement passes and at least one child survives.
func FilterNav(items []Item, ev permission.Evaluator) []Item {
	out := make([]Item, 0, len(items))

	for _, item := range items {
		if !visible(item, ev) {
			continue
		}

		if len(item.Children) > 0 {
			children := FilterNav(item.Children, ev)
			if len(children) == 0 {
				continue
			}
			item.Children = children
		}

		out = append(out, item)
	}

	return out
}

func visible(item Item, ev permission.Evaluator) bool {
	switch item.Requires {
	case RequiresNone:
		return true
	case RequiresView:
		return ev.CanView(item.Module)
	case RequiresAdmin:
		return ev.IsAdmin()
	case RequiresSuperAdmin:
		return ev.IsSuperAdmin()
	default:
		return false
	}
}

// Modules lists every permission module referenced by the tree, in tree
// order.
func Modules(items []Item) []string {
	var out []string
	seen := make(map[string]struct{})

	var walk func([]Item)
	walk = func(items []Item) {
		for _, item := range items {
			if item.Module != "" {
				if _, ok := seen[item.Module]; !ok {
					seen[item.Module] = struct{}{}
					out = append(out, item.Module)
				}
			}
			walk(item.Children)
		}
	}
	walk(items)

	return out
}
