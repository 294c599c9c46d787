// AngelaMos | 2026
// dto.go

package api

import (
	"github.com/carterperez-dev/clinic-session/internal/session"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

// SessionResponse is the session contract the clinic UI renders from.
// The token is only available from /v1/session/token.
type SessionResponse struct {
	User            *user.User     `json:"user"`
	Tenant          *tenant.Tenant `json:"tenant"`
	Loading         bool           `json:"loading"`
	IsAuthenticated bool           `json:"is_authenticated"`
	Phase           session.Phase  `json:"phase"`
}

func toSessionResponse(s session.State, phase session.Phase) SessionResponse {
	return SessionResponse{
		User:            s.User,
		Tenant:          s.Tenant,
		Loading:         s.Loading,
		IsAuthenticated: s.IsAuthenticated(),
		Phase:           phase,
	}
}

type TokenResponse struct {
	Token string `json:"token"`
}

type BadgeResponse struct {
	Module string `json:"module"`
	Count  int    `json:"count"`
}
