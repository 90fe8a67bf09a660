// ABOUTME: Circuit breaker guarding a single network dependency
// ABOUTME: closed counts failures, open rejects until the recovery timeout, half-open trials limited calls

package utils

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"reader-sync/metrics"
)

// CircuitBreakerState represents the current state of the circuit breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive qualifying failures before opening
	SuccessThreshold int           // consecutive half-open successes before closing
	RecoveryTimeout  time.Duration // open duration before half-open trial calls
	MaxRequests      int           // concurrent trial calls allowed while half-open
}

// DefaultCircuitBreakerConfig returns a default circuit breaker configuration.
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
		MaxRequests:      2,
	}
}

// CircuitBreakerStats holds statistics for monitoring.
type CircuitBreakerStats struct {
	State                CircuitBreakerState
	FailureCount         int
	SuccessCount         int
	LastFailureTime      time.Time
	LastSuccessTime      time.Time
	TotalRequests        int64
	TotalSuccesses       int64
	TotalFailures        int64
	TotalRejections      int64
	StateTransitionCount int64
}

// CircuitBreaker guards one dependency. Each dependency (remote API, content
// extraction) owns its own injected instance; state is never shared globally.
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	logger *slog.Logger

	mu               sync.RWMutex
	state            CircuitBreakerState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	lastSuccessTime  time.Time
	nextRetry        time.Time
	halfOpenRequests int

	totalRequests        int64
	totalSuccesses       int64
	totalFailures        int64
	totalRejections      int64
	stateTransitionCount int64
}

// NewCircuitBreaker creates a circuit breaker for the named dependency.
func NewCircuitBreaker(name string, config *CircuitBreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics.SetBreakerState(name, int(StateClosed))

	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		state:  StateClosed,
	}
}

// ErrCircuitBreakerOpen is returned when the circuit breaker is open.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// Execute runs the operation if the breaker allows it. A rejected call
// returns ErrCircuitBreakerOpen without invoking the operation.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	if !cb.allowRequest() {
		cb.mu.Lock()
		cb.totalRejections++
		cb.mu.Unlock()

		metrics.RecordBreakerRejection(cb.name)
		cb.logger.Debug("circuit breaker rejected request",
			"breaker", cb.name,
			"state", cb.GetState().String())
		return ErrCircuitBreakerOpen
	}

	cb.mu.Lock()
	cb.totalRequests++
	cb.mu.Unlock()

	err := operation(ctx)

	if err != nil {
		cb.onFailure(err)
	} else {
		cb.onSuccess()
	}

	return err
}

// allowRequest checks if the circuit breaker should allow the request.
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Now().After(cb.nextRetry) {
			cb.logger.Info("circuit breaker transitioning to half-open",
				"breaker", cb.name)
			cb.setState(StateHalfOpen)
			cb.halfOpenRequests++
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenRequests < cb.config.MaxRequests {
			cb.halfOpenRequests++
			return true
		}
		return false
	default:
		return false
	}
}

// onSuccess handles successful operation completion.
func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalSuccesses++
	cb.lastSuccessTime = time.Now()

	switch cb.state {
	case StateClosed:
		// A success works the counter back toward zero, never below it.
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	case StateHalfOpen:
		cb.successCount++
		cb.halfOpenRequests--

		if cb.successCount >= cb.config.SuccessThreshold {
			cb.logger.Info("circuit breaker closing after successful trials",
				"breaker", cb.name,
				"success_count", cb.successCount,
				"threshold", cb.config.SuccessThreshold)
			cb.setState(StateClosed)
		}
	}
}

// onFailure handles failed operation completion.
func (cb *CircuitBreaker) onFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.totalFailures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.logger.Warn("circuit breaker opening due to failures",
				"breaker", cb.name,
				"failure_count", cb.failureCount,
				"threshold", cb.config.FailureThreshold,
				"error", err)
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// Any failure while half-open re-opens and restarts the recovery clock.
		cb.halfOpenRequests--
		cb.logger.Warn("circuit breaker re-opening from half-open",
			"breaker", cb.name,
			"error", err)
		cb.setState(StateOpen)
	}
}

// setState changes the circuit breaker state. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(newState CircuitBreakerState) {
	oldState := cb.state
	cb.state = newState
	cb.stateTransitionCount++

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
		cb.halfOpenRequests = 0
	case StateOpen:
		cb.nextRetry = time.Now().Add(cb.config.RecoveryTimeout)
		cb.successCount = 0
		cb.halfOpenRequests = 0
	case StateHalfOpen:
		cb.halfOpenRequests = 0
		cb.successCount = 0
	}

	metrics.SetBreakerState(cb.name, int(newState))

	cb.logger.Info("circuit breaker state transition",
		"breaker", cb.name,
		"from", oldState.String(),
		"to", newState.String())
}

// GetState returns the current state of the circuit breaker.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current statistics for monitoring.
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:                cb.state,
		FailureCount:         cb.failureCount,
		SuccessCount:         cb.successCount,
		LastFailureTime:      cb.lastFailureTime,
		LastSuccessTime:      cb.lastSuccessTime,
		TotalRequests:        cb.totalRequests,
		TotalSuccesses:       cb.totalSuccesses,
		TotalFailures:        cb.totalFailures,
		TotalRejections:      cb.totalRejections,
		StateTransitionCount: cb.stateTransitionCount,
	}
}

// Reset returns the circuit breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.logger.Info("resetting circuit breaker", "breaker", cb.name)
	cb.setState(StateClosed)
}
