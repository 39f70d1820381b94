package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis coordinates locks through SET NX with an owner token.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis creates a Redis-backed locker.
func NewRedis(client redis.UniversalClient, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = "amyq:lock:"
	}
	return &Redis{client: client, keyPrefix: keyPrefix}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lockKey := r.keyPrefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return &redisLock{r: r, key: key, redisKey: lockKey, token: token}, nil
}

type redisLock struct {
	r        *Redis
	key      string
	redisKey string
	token    string
}

func (l *redisLock) Key() string { return l.key }

func (l *redisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.r.client, []string{l.redisKey}, l.token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}
