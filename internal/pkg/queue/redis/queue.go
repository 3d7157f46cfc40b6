package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-apime/evomanager/internal/pkg/queue"
)

// EventQueue guarda os callbacks do Evolution numa lista (LPUSH/BRPOP),
// de modo que outra réplica pode consumir o que esta recebeu.
type EventQueue struct {
	rdb    *redis.Client
	key    string
	maxLen int64
}

// NewQueue cria a fila em key. maxLen <= 0 desliga o limite.
func NewQueue(rdb *redis.Client, key string, maxLen int) *EventQueue {
	return &EventQueue{rdb: rdb, key: key, maxLen: int64(maxLen)}
}

func (q *EventQueue) Enqueue(ctx context.Context, event queue.Event) error {
	if q.maxLen > 0 {
		n, err := q.rdb.LLen(ctx, q.key).Result()
		if err != nil {
			return fmt.Errorf("fila evolution: tamanho: %w", err)
		}
		if n >= q.maxLen {
			return queue.ErrFull
		}
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("fila evolution: serializar evento %s: %w", event.Type, err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("fila evolution: enfileirar: %w", err)
	}
	return nil
}

func (q *EventQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Event, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("fila evolution: consumir: %w", err)
	case len(res) != 2:
		return nil, fmt.Errorf("fila evolution: resposta BRPOP com %d itens", len(res))
	}

	event := new(queue.Event)
	if err := json.Unmarshal([]byte(res[1]), event); err != nil {
		return nil, fmt.Errorf("fila evolution: evento corrompido: %w", err)
	}
	return event, nil
}

func (q *EventQueue) Size(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// Close é no-op: o client Redis pertence ao factory.
func (q *EventQueue) Close() error { return nil }
