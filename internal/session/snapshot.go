// AngelaMos | 2026
// snapshot.go

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carterperez-dev/clinic-session/internal/core"
	"github.com/carterperez-dev/clinic-session/internal/storage"
	"github.com/carterperez-dev/clinic-session/internal/tenant"
	"github.com/carterperez-dev/clinic-session/internal/user"
)

// snapshot is the serialisable part of the session kept in durable
// storage. Permissions are not stored; they are re-derived from Token.
type snapshot struct {
	Token  string
	User   *user.User
	Tenant *tenant.Tenant
}

func (s snapshot) encode() (map[string]string, error) {
	values := map[string]string{storage.KeyToken: s.Token}

	raw, err := json.Marshal(s.User)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}
	values[storage.KeyUser] = string(raw)

	raw, err = json.Marshal(s.Tenant)
	if err != nil {
		return nil, fmt.Errorf("encode tenant: %w", err)
	}
	values[storage.KeyTenant] = string(raw)

	return values, nil
}

// loadSnapshot reads the stored session. A missing token yields an empty
// snapshot; unreadable user or tenant records are dropped and left for
// revalidation to fill in.
func loadSnapshot(ctx context.Context, st storage.Store) (snapshot, error) {
	var snap snapshot

	token, err := st.Get(ctx, storage.KeyToken)
	if errors.Is(err, core.ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("load token: %w", err)
	}
	snap.Token = token

	if err := getJSON(ctx, st, storage.KeyUser, &snap.User); err != nil {
		return snap, err
	}
	if err := getJSON(ctx, st, storage.KeyTenant, &snap.Tenant); err != nil {
		return snap, err
	}

	return snap, nil
}

func getJSON[T any](ctx context.Context, st storage.Store, key string, dst **T) error {
	raw, err := st.Get(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	var v T
	if json.Unmarshal([]byte(raw), &v) != nil || raw == "null" {
		return nil
	}
	*dst = &v
	return nil
}

func encodeOne(key string, v any) (map[string]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	return map[string]string{key: string(raw)}, nil
}
