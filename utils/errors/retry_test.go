// ABOUTME: This file tests retry execution, backoff calculation and attempt accounting
package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_CalculateDelay(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    1 * time.Second,
		Multiplier:  2.0,
		Jitter:      false,
	}

	tests := map[string]struct {
		attempt  int
		expected time.Duration
	}{
		"no delay before first attempt": {
			attempt:  1,
			expected: 0,
		},
		"before second attempt": {
			attempt:  2,
			expected: 200 * time.Millisecond,
		},
		"before third attempt": {
			attempt:  3,
			expected: 400 * time.Millisecond,
		},
		"before fourth attempt": {
			attempt:  4,
			expected: 800 * time.Millisecond,
		},
		"capped at max delay": {
			attempt:  5,
			expected: 1 * time.Second,
		},
		"excessive attempt stays capped": {
			attempt:  10,
			expected: 1 * time.Second,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, policy.CalculateDelay(tc.attempt))
		})
	}
}

func TestRetryPolicy_CalculateDelayWithJitter(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}

	// Jitter inflates the deterministic delay by at most 10%.
	base := 200 * time.Millisecond
	for i := 0; i < 50; i++ {
		delay := policy.CalculateDelay(2)
		assert.GreaterOrEqual(t, delay, base)
		assert.LessOrEqual(t, delay, time.Duration(float64(base)*1.1))
	}
}

func TestRetryExecutor_Execute_Success(t *testing.T) {
	policy := NewRetryPolicy(3, 10*time.Millisecond)
	executor := NewRetryExecutor(policy)

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		return nil
	}

	result, err := executor.Execute(context.Background(), operation)

	require.NoError(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, result.Attempts)
}

func TestRetryExecutor_Execute_RetryableError(t *testing.T) {
	policy := NewRetryPolicy(5, 1*time.Millisecond)
	executor := NewRetryExecutor(policy)

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		if callCount < 3 {
			return NewNetworkError("flaky", "driver", "ReaderClient", "Fetch", nil, nil)
		}
		return nil
	}

	result, err := executor.Execute(context.Background(), operation)

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
	// Two failures then success reports attempts == 3.
	assert.Equal(t, 3, result.Attempts)
}

func TestRetryExecutor_Execute_NonRetryableError(t *testing.T) {
	policy := NewRetryPolicy(3, 10*time.Millisecond)
	executor := NewRetryExecutor(policy)

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		return NewNotFoundError("missing", "driver", "ReaderClient", "Fetch", nil)
	}

	result, err := executor.Execute(context.Background(), operation)

	require.Error(t, err)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, 1, result.Attempts)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, CodeNotFound, syncErr.Code)
}

func TestRetryExecutor_Execute_MaxAttemptsExceeded(t *testing.T) {
	policy := NewRetryPolicy(2, 1*time.Millisecond)
	executor := NewRetryExecutor(policy)

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		return NewServerError("still down", "driver", "ReaderClient", "Fetch", nil, nil)
	}

	result, err := executor.Execute(context.Background(), operation)

	require.Error(t, err)
	assert.Equal(t, 2, callCount)
	assert.Equal(t, 2, result.Attempts)
}

func TestRetryExecutor_Execute_RestrictedCodes(t *testing.T) {
	policy := &RetryPolicy{
		MaxAttempts:    3,
		BaseDelay:      1 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableCodes: []string{CodeRateLimit},
	}
	executor := NewRetryExecutor(policy)

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		// Normally retryable, but the policy only retries rate limits.
		return NewNetworkError("down", "driver", "ReaderClient", "Fetch", nil, nil)
	}

	_, err := executor.Execute(context.Background(), operation)

	require.Error(t, err)
	assert.Equal(t, 1, callCount)
}

func TestRetryExecutor_Execute_ContextCancelled(t *testing.T) {
	policy := NewRetryPolicy(5, 50*time.Millisecond)
	executor := NewRetryExecutor(policy)

	ctx, cancel := context.WithCancel(context.Background())

	callCount := 0
	operation := func(ctx context.Context) error {
		callCount++
		cancel()
		return NewNetworkError("down", "driver", "ReaderClient", "Fetch", nil, nil)
	}

	_, err := executor.Execute(ctx, operation)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, callCount)
}
