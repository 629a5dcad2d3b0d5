package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/sessionauth/pkg/idx"
	"github.com/redis/go-redis/v9"
)

var ErrLockUnavailable = errors.New("lock backend unavailable")

// Locker hands out short-lived exclusive leases so only one replica runs a
// periodic job at a time.
type Locker interface {
	// TryLock returns ok=false without error when another holder has key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseLua deletes the lock only if it still carries our token.
// KEYS[1] = lock key, ARGV[1] = token
var releaseLua = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	Client *redis.Client
	Prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{Client: client, Prefix: "sessionauth:lock:"}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	fullKey := l.Prefix + key
	token := idx.New().String()

	ok, err := l.Client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrLockUnavailable, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		err := releaseLua.Run(ctx, l.Client, []string{fullKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %v", ErrLockUnavailable, err)
		}
		return nil
	}
	return release, true, nil
}
