// AngelaMos | 2026
// dto.go

package tenant

import (
	"time"
)

type CreateRequest struct {
	Name    string `json:"name"    validate:"required,min=2,max=150"`
	Phone   string `json:"phone"   validate:"omitempty,max=30"`
	Address string `json:"address" validate:"omitempty,max=255"`
}

type UpdateRequest struct {
	ID                 string     `json:"id"                  validate:"required"`
	Name               string     `json:"name"                validate:"required,min=2,max=150"`
	SubscriptionStatus string     `json:"subscription_status" validate:"max=50"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
}

func (r UpdateRequest) ToTenant() *Tenant {
	return &Tenant{
		ID:                 r.ID,
		Name:               r.Name,
		SubscriptionStatus: r.SubscriptionStatus,
		TrialEndsAt:        r.TrialEndsAt,
	}
}
