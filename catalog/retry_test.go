package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/partners/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failTimes returns an operation failing with err n times, then succeeding.
func failTimes(n int, err error, calls *int) func() error {
	return func() error {
		*calls++
		if *calls <= n {
			return err
		}
		return nil
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		maxAttempts int
		wantErr     bool
		wantCalls   int
	}{
		{"first try", 0, 3, false, 1},
		{"recovers after conflicts", 2, 5, false, 3},
		{"recovers on last attempt", 2, 3, false, 3},
		{"exhausted", 10, 3, true, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(context.Background(), failTimes(tt.failures, storage.ErrConflict, &calls), tt.maxAttempts, time.Millisecond)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrConflict)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryWithBackoff_Permanent(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return Permanent(storage.ErrNotFound)
	}, 5, time.Millisecond)
	assert.Equal(t, storage.ErrNotFound, err, "permanent errors come back unwrapped")
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("busy")
	}, 10, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestRetryWithBackoff_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := RetryWithBackoff(ctx, failTimes(0, nil, &calls), 3, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRetryWithBackoff_WaitsBetweenAttempts(t *testing.T) {
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(context.Background(), failTimes(3, storage.ErrConflict, &calls), 5, 10*time.Millisecond)
	require.NoError(t, err)
	// 10ms + 20ms + 40ms
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		calls := 0
		err := RetryWithBackoff(context.Background(), failTimes(0, nil, &calls), n, time.Millisecond)
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Zero(t, calls)
	}
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 20*time.Millisecond, backoffDelay(20*time.Millisecond, 1))
	assert.Equal(t, 40*time.Millisecond, backoffDelay(20*time.Millisecond, 2))
	assert.Equal(t, 160*time.Millisecond, backoffDelay(20*time.Millisecond, 4))
	assert.Equal(t, maxRetryDelay, backoffDelay(time.Second, 10))
	assert.Equal(t, maxRetryDelay, backoffDelay(time.Second, 1000))
}
