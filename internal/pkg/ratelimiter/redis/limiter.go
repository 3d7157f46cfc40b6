package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-apime/evomanager/internal/pkg/ratelimiter"
)

const keyPrefix = "ratelimit:"

// O primeiro INCR da janela define a expiração da chave.
var fixedWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
    redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// Limiter compartilha as janelas entre réplicas da API.
type Limiter struct {
	rdb *redis.Client
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimiter.Result, error) {
	out, err := fixedWindow.Run(ctx, l.rdb, []string{keyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("ratelimiter redis: %s: %w", key, err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("ratelimiter redis: %s: script devolveu %d valores", key, len(out))
	}

	ttl := window
	if out[1] >= 0 {
		ttl = time.Duration(out[1]) * time.Millisecond
	}
	now := time.Now()
	return ratelimiter.Decide(limit, int(out[0]), now, now.Add(ttl)), nil
}
