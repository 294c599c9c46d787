// AngelaMos | 2026
// token.go

package claimstest

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/clinic-session/internal/claims"
)

var signingKey = []byte("claimstest-signing-key-not-verified-by-clients")

// Token builds a signed bearer token carrying perms as its permissions
// claim.
func Token(t testing.TB, perms claims.Matrix) string {
	t.Helper()

	raw := make(map[string]any, len(perms))
	for module, a := range perms {
		raw[module] = map[string]bool{
			"view":   a.View,
			"create": a.Create,
			"edit":   a.Edit,
			"delete": a.Delete,
		}
	}

	return TokenWithClaims(t, map[string]any{claims.PermissionsClaim: raw})
}

func TokenWithClaims(t testing.TB, extra map[string]any) string {
	t.Helper()

	now := time.Now()
	b := jwt.NewBuilder().
		Subject("user-1").
		IssuedAt(now).
		Expiration(now.Add(time.Hour))
	for k, v := range extra {
		b = b.Claim(k, v)
	}

	tok, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return string(signed)
}
