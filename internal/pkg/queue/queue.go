// Package queue transporta eventos recebidos do Evolution entre o handler
// HTTP e os workers que os aplicam no store.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("queue is closed")
	ErrFull   = errors.New("queue is full")
)

// Event é um callback do Evolution já normalizado. Type usa a forma
// maiúscula (CONNECTION_UPDATE, QRCODE_UPDATED, ...).
type Event struct {
	ID           string         `json:"id"`
	ClientID     string         `json:"clientId"`
	InstanceName string         `json:"instanceName"`
	Type         string         `json:"type"`
	Payload      map[string]any `json:"payload"`
	CreatedAt    time.Time      `json:"createdAt"`
}

type Queue interface {
	Enqueue(ctx context.Context, event Event) error
	// Dequeue devolve nil, nil quando o timeout expira sem evento.
	Dequeue(ctx context.Context, timeout time.Duration) (*Event, error)
	Size(ctx context.Context) (int64, error)
	Close() error
}
