package memory

import (
	"context"
	"sync"
	"time"

	"github.com/open-apime/evomanager/internal/pkg/ratelimiter"
)

// window é uma janela fixa aberta pela primeira requisição da chave.
type window struct {
	count     int
	expiresAt time.Time
}

type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewLimiter() *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.cleanupLoop(time.Minute)
	return l
}

func (l *Limiter) Allow(ctx context.Context, key string, limit int, d time.Duration) (*ratelimiter.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &window{expiresAt: now.Add(d)}
		l.windows[key] = w
	}
	w.count++

	return ratelimiter.Decide(limit, w.count, now, w.expiresAt), nil
}

// Stop encerra a limpeza periódica.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for k, w := range l.windows {
				if now.After(w.expiresAt) {
					delete(l.windows, k)
				}
			}
			l.mu.Unlock()
		}
	}
}
