package commitstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"selns/pkg/namehash"
	"selns/pkg/platform/sentinel"
)

// Redis stores pending commitments in Redis so multiple API replicas see
// one pending set. Keys carry a housekeeping TTL well past the reveal
// window; window enforcement itself stays in the registration service
// against the injected clock, so CommitmentExpired remains distinguishable
// from CommitmentNotFound.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps a connected client. ttl should comfortably exceed the
// maximum commitment age; it only garbage-collects stale entries.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(hash namehash.Hash) string {
	return "commitment:" + hash.Hex()
}

func (r *Redis) Put(ctx context.Context, c Commitment) error {
	ok, err := r.client.SetNX(ctx, key(c.Hash), strconv.FormatInt(c.SubmittedAt.UnixNano(), 10), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("put commitment: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, hash namehash.Hash) (Commitment, error) {
	raw, err := r.client.Get(ctx, key(hash)).Result()
	if err == redis.Nil {
		return Commitment{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Commitment{}, fmt.Errorf("get commitment: %w", err)
	}
	return parse(hash, raw)
}

func (r *Redis) Consume(ctx context.Context, hash namehash.Hash) (Commitment, error) {
	raw, err := r.client.GetDel(ctx, key(hash)).Result()
	if err == redis.Nil {
		return Commitment{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Commitment{}, fmt.Errorf("consume commitment: %w", err)
	}
	return parse(hash, raw)
}

func (r *Redis) Delete(ctx context.Context, hash namehash.Hash) error {
	if err := r.client.Del(ctx, key(hash)).Err(); err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}
	return nil
}

func parse(hash namehash.Hash, raw string) (Commitment, error) {
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Commitment{}, fmt.Errorf("corrupt commitment timestamp: %w", err)
	}
	return Commitment{Hash: hash, SubmittedAt: time.Unix(0, nanos).UTC()}, nil
}
