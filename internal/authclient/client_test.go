// AngelaMos | 2026
// client_test.go

package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/clinic-session/internal/authclient"
	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
)

func newClient(t *testing.T, h http.HandlerFunc) *authclient.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return authclient.New(srv.URL+"/", 2*time.Second, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin_Success(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var creds authclient.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "dr@clinic.test", creds.Email)

		writeJSON(w, http.StatusOK, map[string]any{
			"token":  "tok-1",
			"user":   map[string]any{"id": "u1", "name": "Dr. Molar", "role": "admin"},
			"tenant": map[string]any{"id": "t1", "subscription_status": "trialing"},
		})
	})

	res, err := c.Login(context.Background(), authclient.Credentials{
		Email:    "dr@clinic.test",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "admin", res.User.Role)
	assert.Equal(t, tenant.StatusTrialing, res.Tenant.SubscriptionStatus)
}

func TestLogin_BadCredentials(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
	})

	_, err := c.Login(context.Background(), authclient.Credentials{Email: "a@b.c", Password: "nope12"})
	assert.ErrorIs(t, err, authclient.ErrInvalidCredentials)

	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
}

func TestWhoAmI(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{
			name:   "ok",
			status: http.StatusOK,
			body: map[string]any{
				"user":   map[string]any{"id": "u1", "role": "staff"},
				"tenant": map[string]any{"id": "t1"},
			},
		},
		{
			name:    "expired token",
			status:  http.StatusUnauthorized,
			body:    map[string]string{"error": "jwt expired"},
			wantErr: core.ErrTokenInvalid,
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			wantErr: core.ErrUnavailable,
		},
		{
			name:    "empty identity",
			status:  http.StatusOK,
			body:    map[string]any{},
			wantErr: core.ErrTokenInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/me", r.URL.Path)
				assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
				writeJSON(w, tt.status, tt.body)
			})

			id, err := c.WhoAmI(context.Background(), "tok-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "u1", id.User.ID)
			assert.Equal(t, "t1", id.Tenant.ID)
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/register", r.URL.Path)
		writeJSON(w, http.StatusConflict, map[string]string{"message": "email taken"})
	})

	_, err := c.Register(context.Background(), authclient.RegisterRequest{
		Name:       "Dr. Molar",
		Email:      "dr@clinic.test",
		Password:   "secret1234",
		ClinicName: "Bright Smiles",
	})
	assert.ErrorIs(t, err, authclient.ErrEmailExists)

	var apiErr *authclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "email taken", apiErr.Message)
}

func TestLogout_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := authclient.New(url, 200*time.Millisecond, nil)
	err := c.Logout(context.Background(), "tok-1")
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestCreateTenantAndBadge(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tenants":
			assert.Equal(t, http.MethodPost, r.Method)
			writeJSON(w, http.StatusCreated, map[string]any{"id": "t9", "name": "Bright Smiles"})
		case "/tasks/pending/count":
			writeJSON(w, http.StatusOK, map[string]int{"count": 7})
		default:
			http.NotFound(w, r)
		}
	})

	ten, err := c.CreateTenant(context.Background(), "tok-1", tenant.CreateRequest{Name: "Bright Smiles"})
	require.NoError(t, err)
	assert.Equal(t, "t9", ten.ID)

	n, err := c.Badge(context.Background(), "tok-1", "/tasks/pending/count")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = c.Badge(context.Background(), "tok-1", "/missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
