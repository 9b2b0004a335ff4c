package readiness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoll_ReadyImmediately(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), Policy{Attempts: 6, Delay: time.Hour}, func() bool {
		atomic.AddInt32(&calls, 1)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls)
}

func TestPoll_BecomesReady(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), Policy{Attempts: 6, Delay: time.Millisecond}, func() bool {
		return atomic.AddInt32(&calls, 1) == 4
	})
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls)
}

func TestPoll_ExhaustsAfterAttempts(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), Policy{Attempts: 6, Delay: time.Millisecond}, func() bool {
		atomic.AddInt32(&calls, 1)
		return false
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, int32(6), calls)
}

func TestPoll_ZeroPolicyChecksOnce(t *testing.T) {
	var calls int32
	err := Poll(context.Background(), Policy{}, func() bool {
		atomic.AddInt32(&calls, 1)
		return false
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, int32(1), calls)
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Poll(ctx, Policy{Attempts: 6, Delay: time.Hour}, func() bool { return false })
	require.Error(t, err)
}
