package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/open-apime/evomanager/internal/pkg/locker"
)

// Só apaga a chave se o valor ainda for o token de quem adquiriu.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (locker.Lock, error) {
	token := uuid.New().String()
	fullKey := l.prefix + key

	acquired, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		return nil, locker.ErrLocked
	}
	return &redisLock{client: l.client, key: fullKey, token: token}, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (r *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, r.client, []string{r.key}, r.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("lock release: %w", err)
	}
	return nil
}
