// AngelaMos | 2026
// entity.go

package tenant

import (
	"time"
)

const (
	StatusTrialing = "trialing"
	StatusActive   = "active"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// Tenant is the clinic record. Billing fields are mirrored read-only from
// the payment provider by the clinic API.
type Tenant struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	SubscriptionStatus string     `json:"subscription_status"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
}

func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.TrialEndsAt != nil {
		ends := *t.TrialEndsAt
		c.TrialEndsAt = &ends
	}
	return &c
}
