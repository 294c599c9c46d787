// AngelaMos | 2026
// store.go

package storage

import (
	"context"
)

const (
	KeyToken  = "token"
	KeyUser   = "user"
	KeyTenant = "tenant"
)

var SessionKeys = []string{KeyToken, KeyUser, KeyTenant}

// Change is published on every write so other daemons sharing the same
// namespace can resync.
type Change struct {
	Namespace string   `json:"namespace"`
	Keys      []string `json:"keys"`
	Origin    string   `json:"origin"`
}

func (c Change) Touches(key string) bool {
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Store is durable key/value storage for the session snapshot. Get
// returns core.ErrNotFound for absent keys; SetMany is atomic.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Watch(ctx context.Context) (<-chan Change, error)
	Ping(ctx context.Context) error
	Close() error
}

const watchBuffer = 16
