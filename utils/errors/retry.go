// ABOUTME: This file implements retry with exponential backoff and bounded jitter
// ABOUTME: Non-retryable error codes abort after the first attempt

package errors

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// maxJitterFraction bounds the random backoff inflation to [0, 10%].
const maxJitterFraction = 0.1

// RetryPolicy defines the retry behavior for failed operations.
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
	Multiplier  float64       `json:"multiplier"`
	Jitter      bool          `json:"jitter"`

	// RetryableCodes restricts retries to the listed error codes. When empty,
	// retryability falls back to IsRetryable classification.
	RetryableCodes []string `json:"retryable_codes,omitempty"`
}

// RetryResult reports how a retried operation concluded.
type RetryResult struct {
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// RetryExecutor executes operations under a RetryPolicy.
type RetryExecutor struct {
	policy *RetryPolicy
}

// NewRetryPolicy creates a retry policy with default backoff values.
func NewRetryPolicy(maxAttempts int, baseDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// NewRetryExecutor creates a retry executor with the given policy.
func NewRetryExecutor(policy *RetryPolicy) *RetryExecutor {
	return &RetryExecutor{
		policy: policy,
	}
}

// CalculateDelay returns the backoff preceding the given attempt number.
// With multiplier m the delay before attempt n is baseDelay * m^(n-1),
// inflated by up to 10% jitter and capped at MaxDelay.
func (rp *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}

	multiplier := rp.Multiplier
	if multiplier <= 0 {
		multiplier = 1.0
	}

	delay := float64(rp.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if delay >= float64(rp.MaxDelay) {
			delay = float64(rp.MaxDelay)
			break
		}
	}

	if rp.Jitter {
		delay *= 1 + rand.Float64()*maxJitterFraction
	}

	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	return time.Duration(delay)
}

// ShouldRetry reports whether the policy allows retrying the given error.
func (rp *RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if len(rp.RetryableCodes) > 0 {
		code := CodeOf(err)
		for _, c := range rp.RetryableCodes {
			if c == code {
				return true
			}
		}
		return false
	}

	return IsRetryable(err)
}

// Execute runs the operation until it succeeds, exhausts MaxAttempts, or
// fails with a non-retryable error. The result always carries the attempt
// count and elapsed time, alongside the last error if any.
func (re *RetryExecutor) Execute(ctx context.Context, operation func(ctx context.Context) error) (*RetryResult, error) {
	start := time.Now()
	result := &RetryResult{}

	var lastErr error

	for attempt := 1; attempt <= re.policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		result.Attempts = attempt

		err := operation(ctx)
		if err == nil {
			result.Duration = time.Since(start)
			return result, nil
		}

		lastErr = err

		if !re.policy.ShouldRetry(err) {
			result.Duration = time.Since(start)
			return result, err
		}

		if attempt == re.policy.MaxAttempts {
			break
		}

		delay := re.policy.CalculateDelay(attempt + 1)

		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, fmt.Errorf("operation cancelled during retry delay: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	result.Duration = time.Since(start)

	return result, lastErr
}
