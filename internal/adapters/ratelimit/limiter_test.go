package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"advisor/pkg/errors"
)

func TestLimiterBurst(t *testing.T) {
	l := NewLimiter("test", 60) // 1 rps, burst 6

	for i := 0; i < 6; i++ {
		require.NoError(t, l.Wait(context.Background()), "request %d should pass the burst", i)
	}

	// the next token is a second away
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(l.Wait(ctx), errors.ErrRateLimitExceeded))
}

func TestMultiLimiterWaitRespectsContext(t *testing.T) {
	m := NewMultiLimiter()
	m.AddLimiter("global", NewLimiter("global", 1)) // burst 1, then one per minute

	require.NoError(t, m.Wait(context.Background(), "global", "unknown"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Wait(ctx, "global")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
}
