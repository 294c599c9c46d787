// AngelaMos | 2026
// decide.go

package gate

import (
	"time"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/permission"
	"github.com/carterperez-dev/clinic-session/internal/session"
	"github.com/carterperez-dev/clinic-session/internal/subscription"
)

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionWarn  Decision = "warn"
	DecisionBlock Decision = "block"
)

const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonForbidden       = "forbidden"
	ReasonSubscription    = "subscription"
)

type Verdict struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Banner   *Banner  `json:"banner,omitempty"`
}

// Decide is the route-level check made before a screen renders. It is a
// visibility decision; the clinic API enforces access on every call.
func Decide(s session.State, module string, action claims.Action, now time.Time) Verdict {
	if !s.IsAuthenticated() {
		return Verdict{Decision: DecisionBlock, Reason: ReasonUnauthenticated}
	}

	ev := permission.For(s)
	if !ev.Allows(module, action) {
		return Verdict{Decision: DecisionBlock, Reason: ReasonForbidden}
	}

	if b := BannerFor(ev, subscription.Project(s.Tenant, now)); b != nil {
		return Verdict{Decision: DecisionWarn, Reason: ReasonSubscription, Banner: b}
	}

	return Verdict{Decision: DecisionAllow}
}
