// AngelaMos | 2026
// dto.go

package authclient

import (
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

type Credentials struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type RegisterRequest struct {
	Name       string `json:"name"        validate:"required,min=1,max=100"`
	Email      string `json:"email"       validate:"required,email,max=255"`
	Password   string `json:"password"    validate:"required,min=8,max=128"`
	ClinicName string `json:"clinic_name" validate:"required,min=2,max=150"`
}

// AuthResult is what login and register return: a bearer token plus the
// identity it was issued for.
type AuthResult struct {
	Token  string         `json:"token"`
	User   *user.User     `json:"user"`
	Tenant *tenant.Tenant `json:"tenant"`
}

type Identity struct {
	User   *user.User     `json:"user"`
	Tenant *tenant.Tenant `json:"tenant"`
}

type badgeResponse struct {
	Count int `json:"count"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
