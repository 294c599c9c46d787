// AngelaMos | 2026
// banner.go

package gate

import (
	"fmt"
	"sync"

	"github.com/carterperez-dev/clinic-session/internal/permission"
	"github.com/carterperez-dev/clinic-session/internal/subscription"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const billingPath = "/settings/billing"

type Banner struct {
	Status        subscription.Status `json:"status"`
	Severity      Severity            `json:"severity"`
	Message       string              `json:"message"`
	DaysRemaining int                 `json:"days_remaining,omitempty"`
	ActionLabel   string              `json:"action_label"`
	ActionPath    string              `json:"action_path"`
}

// BannerFor returns the subscription banner for admins, or nil. Staff
// never see it.
func BannerFor(ev permission.Evaluator, info subscription.Info) *Banner {
	if !ev.IsAdmin() {
		return nil
	}

	switch info.Status {
	case subscription.StatusTrialing:
		days := info.Days()
		unit := "days"
		if days == 1 {
			unit = "day"
		}
		return &Banner{
			Status:        info.Status,
			Severity:      SeverityWarning,
			Message:       fmt.Sprintf("Your free trial ends in %d %s.", days, unit),
			DaysRemaining: days,
			ActionLabel:   "Choose a plan",
			ActionPath:    billingPath,
		}
	case subscription.StatusExpired:
		return &Banner{
			Status:      info.Status,
			Severity:    SeverityError,
			Message:     "Your free trial has ended. Choose a plan to keep using the clinic.",
			ActionLabel: "Choose a plan",
			ActionPath:  billingPath,
		}
	case subscription.StatusPastDue:
		return &Banner{
			Status:      info.Status,
			Severity:    SeverityError,
			Message:     "Your last payment did not go through. Update your billing details.",
			ActionLabel: "Update billing",
			ActionPath:  billingPath,
		}
	default:
		return nil
	}
}

// Dismissals remembers which banner was dismissed in which session
// generation. Logging in again shows it again.
type Dismissals struct {
	mu         sync.Mutex
	generation uint64
	statuses   map[subscription.Status]struct{}
}

func NewDismissals() *Dismissals {
	return &Dismissals{statuses: make(map[subscription.Status]struct{})}
}

func (d *Dismissals) Dismiss(generation uint64, status subscription.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != generation {
		d.generation = generation
		d.statuses = make(map[subscription.Status]struct{})
	}
	d.statuses[status] = struct{}{}
}

func (d *Dismissals) Dismissed(generation uint64, status subscription.Status) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.generation != generation {
		return false
	}
	_, ok := d.statuses[status]
	return ok
}

// Filter drops b if it was dismissed in generation.
func (d *Dismissals) Filter(generation uint64, b *Banner) *Banner {
	if b == nil || d.Dismissed(generation, b.Status) {
		return nil
	}
	return b
}
