package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-apime/evomanager/internal/pkg/queue"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, queue.Event{ID: "1", Type: "CONNECTION_UPDATE"}))
	assert.ErrorIs(t, q.Enqueue(ctx, queue.Event{ID: "2"}), queue.ErrFull)

	size, _ := q.Size(ctx)
	assert.Equal(t, int64(1), size)

	ev, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "1", ev.ID)

	ev, err = q.Dequeue(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestClosedQueue(t *testing.T) {
	q := NewQueue(4)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(context.Background(), queue.Event{}), queue.ErrClosed)
	_, err := q.Dequeue(context.Background(), time.Second)
	assert.ErrorIs(t, err, queue.ErrClosed)
}
