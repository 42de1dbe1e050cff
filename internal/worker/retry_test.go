package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_NextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 800*time.Millisecond, p.NextDelay(4))
	assert.Equal(t, time.Second, p.NextDelay(5))
	assert.Equal(t, time.Second, p.NextDelay(5000))
}

func TestRetryPolicy_Defaults(t *testing.T) {
	var p RetryPolicy
	assert.Equal(t, time.Second, p.NextDelay(1))
	assert.Equal(t, 2*time.Second, p.NextDelay(2))
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	assert.False(t, RetryPolicy{}.Exhausted(1000), "zero MaxRetries never gives up")

	p := RetryPolicy{MaxRetries: 3}
	assert.False(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestRetryPolicy_Wait(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Millisecond}
	assert.NoError(t, p.Wait(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := RetryPolicy{InitialDelay: time.Hour}
	assert.ErrorIs(t, slow.Wait(ctx, 1), context.Canceled)
}
