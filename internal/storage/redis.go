// AngelaMos | 2026
// redis.go

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/clinic-session/internal/core"
)

// Redis stores the snapshot under clinicd:<namespace>:<key> and fans
// changes out over pub/sub. The client is owned by the caller.
type Redis struct {
	client    *redis.Client
	namespace string
	origin    string
}

func NewRedis(client *redis.Client, namespace, origin string) *Redis {
	return &Redis{client: client, namespace: namespace, origin: origin}
}

func (r *Redis) key(k string) string {
	return "clinicd:" + r.namespace + ":" + k
}

func (r *Redis) channel() string {
	return "clinicd:" + r.namespace + ":changes"
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("get %s: %w", key, core.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (r *Redis) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Set(ctx, r.key(k), values[k], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set session keys: %w", err)
	}

	r.publish(ctx, keys)
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}

	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("delete session keys: %w", err)
	}

	r.publish(ctx, keys)
	return nil
}

func (r *Redis) publish(ctx context.Context, keys []string) {
	payload, err := json.Marshal(Change{
		Namespace: r.namespace,
		Keys:      keys,
		Origin:    r.origin,
	})
	if err != nil {
		return
	}

	if err := r.client.Publish(ctx, r.channel(), payload).Err(); err != nil {
		slog.Warn("storage change publish failed",
			"component", "storage",
			"driver", "redis",
			"error", err,
		)
	}
}

func (r *Redis) Watch(ctx context.Context) (<-chan Change, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close() //nolint:errcheck // cleanup on failed subscribe
		return nil, fmt.Errorf("subscribe %s: %w", r.channel(), err)
	}

	out := make(chan Change, watchBuffer)
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close() //nolint:errcheck // best-effort unsubscribe

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis storage ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return nil
}

var _ Store = (*Redis)(nil)
