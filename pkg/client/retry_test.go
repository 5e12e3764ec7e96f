package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSchedule(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
}

func TestBackoffCappedAtMaxDelay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
	assert.Equal(t, 5*time.Second, p.Backoff(8))
}

func TestApplyDefaults(t *testing.T) {
	p := RetryPolicy{}.applyDefaults()
	assert.Equal(t, DefaultRetryPolicy(), p)

	custom := RetryPolicy{MaxAttempts: 5, InitialDelay: 10 * time.Millisecond}.applyDefaults()
	assert.Equal(t, 5, custom.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, custom.InitialDelay)
	assert.Equal(t, 30*time.Second, custom.MaxDelay)
	assert.Equal(t, 2.0, custom.Multiplier)
}
