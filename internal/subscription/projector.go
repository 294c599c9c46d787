// AngelaMos | 2026
// projector.go

package subscription

import (
	"math"
	"time"

	"github.com/carterperez-dev/clinic-session/internal/tenant"
)

type Status string

const (
	StatusNone     Status = "none"
	StatusTrialing Status = "trialing"
	StatusExpired  Status = "expired"
	StatusPastDue  Status = "past_due"
)

const day = 24 * time.Hour

// Info is derived from the tenant on every call and never stored.
// DaysRemaining is set only while trialing.
type Info struct {
	Status        Status `json:"status"`
	DaysRemaining *int   `json:"days_remaining,omitempty"`
}

// Actionable reports whether the status is something an admin should be
// told about.
func (i Info) Actionable() bool {
	return i.Status != StatusNone
}

func (i Info) Days() int {
	if i.DaysRemaining == nil {
		return 0
	}
	return *i.DaysRemaining
}

func Project(t *tenant.Tenant, now time.Time) Info {
	if t == nil {
		return Info{Status: StatusNone}
	}

	switch {
	case t.SubscriptionStatus == tenant.StatusTrialing && t.TrialEndsAt != nil:
		days := DaysUntil(*t.TrialEndsAt, now)
		if days <= 0 {
			return Info{Status: StatusExpired}
		}
		return Info{Status: StatusTrialing, DaysRemaining: &days}
	case t.SubscriptionStatus == tenant.StatusPastDue:
		return Info{Status: StatusPastDue}
	default:
		return Info{Status: StatusNone}
	}
}

// DaysUntil rounds the remaining time up to whole days, so any part of a
// day left counts as one.
func DaysUntil(end, now time.Time) int {
	return int(math.Ceil(float64(end.Sub(now)) / float64(day)))
}
