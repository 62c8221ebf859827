package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// HashPipe is the part of a MULTI/EXEC block the guest stores queue into.
// Results are readable only after the transaction returns.
type HashPipe interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HSetNX(ctx context.Context, key, field string, value any) *redis.BoolCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// HashTx sends everything fn queues as one MULTI/EXEC. If fn fails nothing is
// sent; if the round trip fails Redis has applied none of it.
func (c *Client) HashTx(ctx context.Context, fn func(HashPipe) error) error {
	store, err := c.conn()
	if err != nil {
		return err
	}
	_, err = store.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return fn(pipe)
	})
	return err
}

var setExistingScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	for i = 1, #KEYS do
		redis.call('PEXPIRE', KEYS[i], ttl)
	end
end
return 1
`)

// HSetExisting overwrites field only when key already holds it, then slides
// the expiry of key and every touch key. The check and the write run as one
// script so a concurrent delete cannot resurrect the field.
func (c *Client) HSetExisting(ctx context.Context, key, field string, value any, ttl time.Duration, touch ...string) (bool, error) {
	store, err := c.conn()
	if err != nil {
		return false, err
	}
	keys := append([]string{key}, touch...)
	updated, err := setExistingScript.Run(ctx, store, keys, field, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return updated == 1, nil
}
