package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWindow(t *testing.T) {
	l := NewLimiter()
	defer l.Stop()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := l.Allow(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, time.Minute, res.RetryAfter)

	// outra chave tem janela própria
	res, _ = l.Allow(ctx, "outra", 2, time.Minute)
	assert.True(t, res.Allowed)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	res, _ = l.Allow(ctx, "k", 2, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}
