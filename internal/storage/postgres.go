// AngelaMos | 2026
// postgres.go

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

const notifyChannel = "clinicd_storage"

const (
	schemaQuery = `
		CREATE TABLE IF NOT EXISTS client_storage (
			namespace  TEXT        NOT NULL,
			key        TEXT        NOT NULL,
			value      TEXT        NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (namespace, key)
		)`

	getQuery = `
		SELECT value
		FROM client_storage
		WHERE namespace = $1 AND key = $2`

	upsertQuery = `
		INSERT INTO client_storage (namespace, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	deleteQuery = `
		DELETE FROM client_storage
		WHERE namespace = $1 AND key = $2`

	notifyQuery = `SELECT pg_notify($1, $2)`
)

// Postgres keeps the snapshot in the client_storage table and announces
// writes with NOTIFY, delivered on commit.
type Postgres struct {
	db        *sqlx.DB
	url       string
	namespace string
	origin    string
}

func NewPostgres(db *sqlx.DB, url, namespace, origin string) *Postgres {
	return &Postgres{db: db, url: url, namespace: namespace, origin: origin}
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaQuery); err != nil {
		return fmt.Errorf("create client_storage: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.GetContext(ctx, &value, getQuery, p.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return core.InTx(ctx, p.db, func(tx *sqlx.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, upsertQuery, p.namespace, k, values[k]); err != nil {
				return fmt.Errorf("upsert %s: %w", k, err)
			}
		}
		return p.notify(ctx, tx, keys)
	})
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	return core.InTx(ctx, p.db, func(tx *sqlx.Tx) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, deleteQuery, p.namespace, k); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return p.notify(ctx, tx, keys)
	})
}

func (p *Postgres) notify(ctx context.Context, tx *sqlx.Tx, keys []string) error {
	payload, err := json.Marshal(Change{
		Namespace: p.namespace,
		Keys:      keys,
		Origin:    p.origin,
	})
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}

	if _, err := tx.ExecContext(ctx, notifyQuery, notifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify change: %w", err)
	}
	return nil
}

// Watch opens a dedicated connection for LISTEN; database/sql pools
// cannot hold one.
func (p *Postgres) Watch(ctx context.Context) (<-chan Change, error) {
	conn, err := pgx.Connect(ctx, p.url)
	if err != nil {
		return nil, fmt.Errorf("connect listener: %w", err)
	}

	listen := "LISTEN " + pgx.Identifier{notifyChannel}.Sanitize()
	if _, err := conn.Exec(ctx, listen); err != nil {
		_ = conn.Close(context.Background()) //nolint:errcheck // cleanup on failed listen
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	out := make(chan Change, watchBuffer)

	go func() {
		defer close(out)
		defer conn.Close(context.Background()) //nolint:errcheck // best-effort close

		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				return
			}

			var change Change
			if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
				continue
			}
			if change.Namespace != p.namespace {
				continue
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres storage ping: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	return nil
}

var _ Store = (*Postgres)(nil)
