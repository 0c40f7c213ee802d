package frpei

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is one of the three circuit breaker states of §4.F.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// ErrCircuitOpen is returned by Allow when the breaker is rejecting
// requests, grounded on ferro-labs-ai-gateway's circuitbreaker package.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitBreaker tracks per-provider health and gates requests per the
// closed/open/half-open state machine.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            BreakerState
	failureThreshold int
	successThreshold int
	resetTimeout     time.Duration

	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time

	Successes    int
	Failures     int
	Timeouts     int
	LastError    error
	LastLatency  time.Duration
	EMALatencyMs float64
}

// NewCircuitBreaker builds a breaker starting in the closed state.
func NewCircuitBreaker(failureThreshold, successThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		resetTimeout:     resetTimeout,
	}
}

// Allow reports whether a request may proceed, transitioning open ->
// half-open once resetTimeout has elapsed.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if time.Since(b.openedAt) >= b.resetTimeout {
			b.state = StateHalfOpen
			b.consecutiveSuccesses = 0
		} else {
			return ErrCircuitOpen
		}
	}
	return nil
}

// RecordSuccess updates metrics and may close a half-open breaker.
func (b *CircuitBreaker) RecordSuccess(latency time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Successes++
	b.consecutiveFailures = 0
	b.LastLatency = latency
	b.EMALatencyMs = 0.9*b.EMALatencyMs + 0.1*float64(latency.Milliseconds())

	if b.state == StateHalfOpen {
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.successThreshold {
			b.state = StateClosed
		}
	}
}

// RecordFailure updates metrics and may open the breaker.
func (b *CircuitBreaker) RecordFailure(err error, timeout bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Failures++
	b.LastError = err
	if timeout {
		b.Timeouts++
	}

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = time.Now()
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold {
		b.state = StateOpen
		b.openedAt = time.Now()
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
