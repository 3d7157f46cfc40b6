package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-apime/evomanager/internal/pkg/locker"
)

type entry struct {
	token     string
	expiresAt time.Time
}

type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]entry
	now   func() time.Time
}

func NewLocker() *MemoryLocker {
	return &MemoryLocker{
		locks: make(map[string]entry),
		now:   time.Now,
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (locker.Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.locks[key]; ok && now.Before(cur.expiresAt) {
		return nil, locker.ErrLocked
	}

	token := uuid.New().String()
	l.locks[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return &memoryLock{owner: l, key: key, token: token}, nil
}

type memoryLock struct {
	owner *MemoryLocker
	key   string
	token string
}

// Release só remove a chave se ela ainda pertence a este lock; após a
// expiração outro chamador pode ter assumido.
func (m *memoryLock) Release(ctx context.Context) error {
	m.owner.mu.Lock()
	defer m.owner.mu.Unlock()

	if cur, ok := m.owner.locks[m.key]; ok && cur.token == m.token {
		delete(m.owner.locks, m.key)
	}
	return nil
}
