package rediscache

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// setIfNewer keeps the version next to the value (KEYS[2]) so a slow reader
// cannot put back a snapshot older than the one a writer already stored.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	c *redis.Client
}

// NewClient lets the journey cache and the rate limiter share one pool.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func New(addr string) *RedisCache {
	return NewFromClient(NewClient(addr))
}

func NewFromClient(c *redis.Client) *RedisCache {
	return &RedisCache{c: c}
}

func versionKey(key string) string {
	return key + ":version"
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.c.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	return val, true, nil
}

func (r *RedisCache) SetIfNewer(ctx context.Context, key string, value []byte, version int64, ttl time.Duration) (bool, error) {
	n, err := setIfNewer.Run(ctx, r.c,
		[]string{key, versionKey(key)},
		value, strconv.FormatInt(version, 10), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "redis set if newer")
	}
	return n == 1, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return errors.Wrap(r.c.Ping(ctx).Err(), "redis ping")
}

func (r *RedisCache) Close() error {
	return r.c.Close()
}
