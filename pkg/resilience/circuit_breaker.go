package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitBreaker is a classic closed/open/half-open breaker: it counts
// consecutive failures in the closed state, fails fast once the threshold
// trips, and after Timeout moves to half-open, where calls go through:
// SuccessThreshold successes close it again and any failure reopens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu               sync.Mutex
	state            State
	consecutiveFails int64
	successesInHalf  int64
	openedAt         time.Time
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// ErrCircuitOpen is returned by Execute while the breaker is open and has
// not yet reached its timeout.
var ErrCircuitOpen = fmt.Errorf("circuit breaker open")

func (cb *CircuitBreaker) Execute(ctx context.Context, fn Executor) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailureLocked()
	} else {
		cb.onSuccessLocked()
	}
	return err
}

// allow decides whether a call may proceed, transitioning open->half-open
// once Timeout has elapsed.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Timeout {
			return false
		}
		cb.transitionLocked(StateHalfOpen)
		return true
	default:
		return true
	}
}

func (cb *CircuitBreaker) onFailureLocked() {
	switch cb.state {
	case StateHalfOpen:
		cb.transitionLocked(StateOpen)
	case StateClosed:
		cb.consecutiveFails++
		if cb.consecutiveFails >= cb.cfg.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

func (cb *CircuitBreaker) onSuccessLocked() {
	switch cb.state {
	case StateHalfOpen:
		cb.successesInHalf++
		if cb.successesInHalf >= cb.cfg.SuccessThreshold {
			cb.transitionLocked(StateClosed)
		}
	case StateClosed:
		cb.consecutiveFails = 0
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	switch to {
	case StateOpen:
		cb.openedAt = time.Now()
	case StateClosed:
		cb.consecutiveFails = 0
	case StateHalfOpen:
		cb.successesInHalf = 0
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}

// State reports the breaker's current state, mainly for tests and metrics.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
