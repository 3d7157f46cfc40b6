// Package ratelimiter implementa janela fixa por chave, usada pelos
// middlewares de rate limit (por token e por IP).
package ratelimiter

import (
	"context"
	"time"
)

type Result struct {
	Allowed    bool
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Decide monta o Result da count-ésima requisição de uma janela que
// reinicia em reset.
func Decide(limit, count int, now, reset time.Time) *Result {
	res := &Result{
		Allowed:   count <= limit,
		Remaining: max(limit-count, 0),
		Reset:     reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
	}
	return res
}
