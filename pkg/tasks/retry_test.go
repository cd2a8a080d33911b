package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyBackoff(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		MaxAttempts:       5,
		InitialDelay:      time.Second,
		MaxDelay:          time.Minute,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, time.Second, policy.NextRetryDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextRetryDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextRetryDelay(3))
	assert.Equal(t, 8*time.Second, policy.NextRetryDelay(4))
}

func TestRetryPolicyCapsAtMaxDelay(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{
		MaxAttempts:       10,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
	})

	assert.Equal(t, 10*time.Second, policy.NextRetryDelay(8))
}

func TestRetryPolicyShouldRetry(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{MaxAttempts: 3})

	assert.True(t, policy.ShouldRetry(1))
	assert.True(t, policy.ShouldRetry(2))
	assert.False(t, policy.ShouldRetry(3))
	assert.False(t, policy.ShouldRetry(4))
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := NewRetryPolicy(RetryConfig{})

	assert.Equal(t, DefaultMaxAttempts, policy.config.MaxAttempts)
	assert.True(t, policy.config.InitialDelay > 0)
	assert.True(t, policy.config.BackoffMultiplier > 1.0)
}
