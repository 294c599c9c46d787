// AngelaMos | 2026
// projector_test.go

package subscription_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/carterperez-dev/clinic-session/internal/subscription"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
)

func at(t time.Time) *time.Time { return &t }

func TestProject(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		tenant   *tenant.Tenant
		want     subscription.Status
		wantDays int
	}{
		{"no tenant", nil, subscription.StatusNone, 0},
		{
			"trial five days left",
			&tenant.Tenant{SubscriptionStatus: tenant.StatusTrialing, TrialEndsAt: at(now.Add(5 * 24 * time.Hour))},
			subscription.StatusTrialing, 5,
		},
		{
			"partial day rounds up",
			&tenant.Tenant{SubscriptionStatus: tenant.StatusTrialing, TrialEndsAt: at(now.Add(2 * time.Hour))},
			subscription.StatusTrialing, 1,
		},
		{
			"trial ended yesterday",
			&tenant.Tenant{SubscriptionStatus: tenant.StatusTrialing, TrialEndsAt: at(now.Add(-24 * time.Hour))},
			subscription.StatusExpired, 0,
		},
		{
			"trial ends right now",
			&tenant.Tenant{SubscriptionStatus: tenant.StatusTrialing, TrialEndsAt: at(now)},
			subscription.StatusExpired, 0,
		},
		{
			"trialing without end date",
			&tenant.Tenant{SubscriptionStatus: tenant.StatusTrialing},
			subscription.StatusNone, 0,
		},
		{"past due", &tenant.Tenant{SubscriptionStatus: tenant.StatusPastDue}, subscription.StatusPastDue, 0},
		{"active", &tenant.Tenant{SubscriptionStatus: tenant.StatusActive}, subscription.StatusNone, 0},
		{"canceled", &tenant.Tenant{SubscriptionStatus: tenant.StatusCanceled}, subscription.StatusNone, 0},
		{"unknown", &tenant.Tenant{SubscriptionStatus: "paused"}, subscription.StatusNone, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := subscription.Project(tt.tenant, now)

			assert.Equal(t, tt.want, info.Status)
			assert.Equal(t, tt.wantDays, info.Days())
			if tt.want != subscription.StatusTrialing {
				assert.Nil(t, info.DaysRemaining)
			}
		})
	}
}

func TestProject_NeverNegativeTrial(t *testing.T) {
	now := time.Now()
	for offset := -72 * time.Hour; offset <= 72*time.Hour; offset += 7 * time.Hour {
		info := subscription.Project(&tenant.Tenant{
			SubscriptionStatus: tenant.StatusTrialing,
			TrialEndsAt:        at(now.Add(offset)),
		}, now)

		if info.Status == subscription.StatusTrialing {
			assert.Positive(t, info.Days(), "offset %s", offset)
		} else {
			assert.Equal(t, subscription.StatusExpired, info.Status, "offset %s", offset)
		}
	}
}
