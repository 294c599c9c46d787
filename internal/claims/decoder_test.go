// AngelaMos | 2026
// decoder_test.go

package claims_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/claims"
	"github.com/carterperez-dev/clinic-session/internal/claims/claimstest"
)

func TestDecode_ValidToken(t *testing.T) {
	want := claims.Matrix{
		"patients": {View: true, Create: true},
		"tasks":    {Create: true},
	}

	got := claims.Decode(claimstest.Token(t, want))

	assert.Equal(t, want, got)
}

func TestDecode_FailsClosed(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"permissions":`))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-token"},
		{name: "two segments", token: "abc.def"},
		{name: "bad base64", token: "!!!.@@@.###"},
		{name: "truncated json payload", token: "eyJhbGciOiJIUzI1NiJ9." + payload + ".sig"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got claims.Matrix
			require.NotPanics(t, func() {
				got = claims.Decode(tt.token)
			})
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestDecode_MissingOrMisshapenClaim(t *testing.T) {
	tests := []struct {
		name  string
		extra map[string]any
		want  claims.Matrix
	}{
		{
			name:  "no permissions claim",
			extra: map[string]any{"role": "staff"},
			want:  claims.Matrix{},
		},
		{
			name:  "claim is a list",
			extra: map[string]any{"permissions": []string{"patients"}},
			want:  claims.Matrix{},
		},
		{
			name: "module value is not an object",
			extra: map[string]any{"permissions": map[string]any{
				"patients": true,
				"tasks":    map[string]any{"view": true},
			}},
			want: claims.Matrix{"tasks": {View: true}},
		},
		{
			name: "non boolean flags deny",
			extra: map[string]any{"permissions": map[string]any{
				"billing": map[string]any{"view": "true", "edit": 1, "delete": true},
			}},
			want: claims.Matrix{"billing": {Delete: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := claims.Decode(claimstest.TokenWithClaims(t, tt.extra))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActions_Allows(t *testing.T) {
	a := claims.Actions{View: true, Edit: true}

	assert.True(t, a.Allows(claims.ActionView))
	assert.False(t, a.Allows(claims.ActionCreate))
	assert.True(t, a.Allows(claims.ActionEdit))
	assert.False(t, a.Allows(claims.ActionDelete))
	assert.False(t, a.Allows(claims.Action("approve")))
	assert.True(t, a.Any())
	assert.False(t, claims.Actions{}.Any())
}

func TestParseAction(t *testing.T) {
	a, ok := claims.ParseAction("edit")
	assert.True(t, ok)
	assert.Equal(t, claims.ActionEdit, a)

	_, ok = claims.ParseAction("approve")
	assert.False(t, ok)
}

func TestCachingDecoder(t *testing.T) {
	calls := 0
	inner := claims.DecoderFunc(func(token string) claims.Matrix {
		calls++
		return claims.Decode(token)
	})
	d := claims.NewCachingDecoder(inner, 8, time.Minute)

	token := claimstest.Token(t, claims.Matrix{"patients": {View: true}})

	first := d.Decode(token)
	second := d.Decode(token)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, d.Len())

	first["patients"] = claims.Actions{Delete: true}
	assert.Equal(t, claims.Actions{View: true}, d.Decode(token)["patients"])

	assert.Empty(t, d.Decode(""))
	assert.Equal(t, 1, calls)
}

func TestMatrix_Modules(t *testing.T) {
	m := claims.Matrix{"tasks": {}, "billing": {}, "patients": {}}
	assert.Equal(t, []string{"billing", "patients", "tasks"}, m.Modules())
}
