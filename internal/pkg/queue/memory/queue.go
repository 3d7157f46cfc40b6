package memory

import (
	"context"
	"sync"
	"time"

	"github.com/open-apime/evomanager/internal/pkg/queue"
)

const defaultCapacity = 1000

// EventQueue é a fila usada sem Redis. Os eventos se perdem num restart.
type EventQueue struct {
	ch     chan queue.Event
	mu     sync.RWMutex
	closed bool
}

func NewQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &EventQueue{ch: make(chan queue.Event, capacity)}
}

// Enqueue não bloqueia. Buffer cheio devolve queue.ErrFull.
func (q *EventQueue) Enqueue(ctx context.Context, event queue.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return queue.ErrClosed
	}

	select {
	case q.ch <- event:
		return nil
	default:
		return queue.ErrFull
	}
}

func (q *EventQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Event, error) {
	wait := time.NewTimer(timeout)
	defer wait.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-wait.C:
		return nil, nil
	case event, ok := <-q.ch:
		if !ok {
			return nil, queue.ErrClosed
		}
		return &event, nil
	}
}

func (q *EventQueue) Size(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// Close fecha o canal uma única vez. Eventos já no buffer ainda podem
// ser consumidos.
func (q *EventQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.ch)
	return nil
}
