package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per service for TTLDedup.
type Dedup struct {
	rdb     redis.Cmdable
	service string
	ttl     time.Duration
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service, ttl: TTLDedup}
}

// FirstSeen marks id as processed and reports whether this call was the
// first to do so.
func (d *Dedup) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", d.ttl).Result()
}

// Idempotency maps a client-supplied key to the batch it created.
type Idempotency struct {
	rdb redis.Cmdable
}

func NewIdempotency(rdb redis.Cmdable) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// Lookup returns the batch id stored for key, or "" when there is none.
func (i *Idempotency) Lookup(ctx context.Context, key string) (string, error) {
	v, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemPendingCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (i *Idempotency) Remember(ctx context.Context, key, batchID string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemPendingCreate, key), batchID, TTLIdempotency).Err()
}
