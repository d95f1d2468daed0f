package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/dispute-autopilot/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "dispute-autopilot:lock"

var _ ratelimit.Locker = (*RedisLocker)(nil)

// RedisLocker claims names with SET NX. Claims expire on their own so a crashed
// holder never blocks the next sweep for longer than ttl.
type RedisLocker struct {
	client *goredis.Client
	owner  string
}

func NewRedisLocker(client *goredis.Client, owner string) (*RedisLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = "dispute-autopilot"
	}
	return &RedisLocker{client: client, owner: owner}, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key, err := lockKey(name)
	if err != nil {
		return false, err
	}
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive")
	}

	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	return ok, nil
}

// Release drops the claim if this locker still owns it.
func (l *RedisLocker) Release(ctx context.Context, name string) error {
	key, err := lockKey(name)
	if err != nil {
		return err
	}
	if err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("failed to release lock %q: %w", name, err)
	}
	return nil
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func lockKey(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", fmt.Errorf("lock name is required")
	}
	return lockKeyPrefix + ":" + normalized, nil
}
