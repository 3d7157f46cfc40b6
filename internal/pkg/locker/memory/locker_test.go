package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-apime/evomanager/internal/pkg/locker"
)

func TestAcquireRelease(t *testing.T) {
	l := NewLocker()
	ctx := context.Background()

	lock, err := l.Acquire(ctx, "activation:c1:EVOLUTION_API", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "activation:c1:EVOLUTION_API", time.Minute)
	assert.ErrorIs(t, err, locker.ErrLocked)

	_, err = l.Acquire(ctx, "activation:c2:EVOLUTION_API", time.Minute)
	assert.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	_, err = l.Acquire(ctx, "activation:c1:EVOLUTION_API", time.Minute)
	assert.NoError(t, err)
}

func TestExpiredLockIsTakenOver(t *testing.T) {
	l := NewLocker()
	base := time.Now()
	l.now = func() time.Time { return base }
	ctx := context.Background()

	old, err := l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	l.now = func() time.Time { return base.Add(2 * time.Second) }
	_, err = l.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)

	// o release do dono antigo não derruba o novo
	require.NoError(t, old.Release(ctx))
	_, err = l.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, locker.ErrLocked)
}

func TestOnlyOneConcurrentHolder(t *testing.T) {
	l := NewLocker()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background(), "k", time.Minute); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
