// AngelaMos | 2026
// decoder.go

package claims

import (
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// PermissionsClaim is the private claim carrying the permission matrix.
const PermissionsClaim = "permissions"

type Decoder interface {
	Decode(token string) Matrix
}

type DecoderFunc func(token string) Matrix

func (f DecoderFunc) Decode(token string) Matrix {
	return f(token)
}

var Default Decoder = DecoderFunc(Decode)

// Decode reads the permissions claim out of a bearer token without
// verifying its signature or expiry. Anything unreadable yields an empty
// matrix: the client-side matrix only drives UI filtering and the clinic
// API re-checks every call.
func Decode(token string) (m Matrix) {
	if token == "" {
		return Matrix{}
	}

	defer func() {
		if recover() != nil {
			m = Matrix{}
		}
	}()

	tok, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return Matrix{}
	}

	var raw any
	if err := tok.Get(PermissionsClaim, &raw); err != nil {
		return Matrix{}
	}

	return fromClaim(raw)
}

func fromClaim(raw any) Matrix {
	modules, ok := raw.(map[string]any)
	if !ok {
		return Matrix{}
	}

	m := make(Matrix, len(modules))
	for name, v := range modules {
		flags, ok := v.(map[string]any)
		if !ok {
			continue
		}
		m[name] = Actions{
			View:   flags[string(ActionView)] == true,
			Create: flags[string(ActionCreate)] == true,
			Edit:   flags[string(ActionEdit)] == true,
			Delete: flags[string(ActionDelete)] == true,
		}
	}

	return m
}
