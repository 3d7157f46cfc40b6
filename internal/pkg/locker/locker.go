// Package locker serializa operações por chave entre goroutines (memory) ou
// entre réplicas (redis).
package locker

import (
	"context"
	"errors"
	"time"
)

// ErrLocked indica que outra operação já detém a chave.
var ErrLocked = errors.New("locker: chave já bloqueada")

type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	// Acquire não espera: devolve ErrLocked se a chave estiver ocupada.
	// O lock expira sozinho após ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
