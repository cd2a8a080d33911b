package tasks

import (
	"math"
	"time"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts       int           `json:"max_attempts"`
	InitialDelay      time.Duration `json:"initial_delay"`
	MaxDelay          time.Duration `json:"max_delay"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       DefaultMaxAttempts,
		InitialDelay:      5 * time.Second,
		MaxDelay:          10 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicy implements exponential backoff retry logic
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a new retry policy
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 5 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 10 * time.Minute
	}
	if config.BackoffMultiplier <= 1.0 {
		config.BackoffMultiplier = 2.0
	}

	return &RetryPolicy{config: config}
}

// ShouldRetry determines if a failed task gets another attempt
func (p *RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.config.MaxAttempts
}

// NextRetryDelay calculates the delay before the next attempt
func (p *RetryPolicy) NextRetryDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return p.config.InitialDelay
	}

	delay := float64(p.config.InitialDelay) * math.Pow(p.config.BackoffMultiplier, float64(attempts-1))
	if delay > float64(p.config.MaxDelay) {
		return p.config.MaxDelay
	}
	return time.Duration(delay)
}

// NextRetryTime calculates when the next attempt should occur
func (p *RetryPolicy) NextRetryTime(attempts int) time.Time {
	return time.Now().Add(p.NextRetryDelay(attempts))
}
