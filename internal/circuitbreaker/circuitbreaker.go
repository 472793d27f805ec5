// Package circuitbreaker protects a publication sink from a dead endpoint:
// after repeated failures the circuit opens and publications are skipped
// cheaply until a probe succeeds.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state (Closed, Open, HalfOpen).
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// ErrOpen is returned by Call while the circuit is open and the open
// timeout has not elapsed. Callers treat it as a skip, not a failure.
var ErrOpen = errors.New("circuit breaker open")

// Config holds circuit breaker parameters.
type Config struct {
	// FailureThreshold consecutive failures open the circuit. Default 5.
	FailureThreshold int
	// SuccessThreshold half-open probes must succeed to close it. Default 2.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before allowing a probe.
	// Default 30s.
	Timeout time.Duration
	// OnStateChange, when set, is invoked on every transition (for metrics).
	OnStateChange func(from, to State)
}

// CircuitBreaker tracks failures and successes of a guarded operation.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	cfg             Config
}

// New creates a CircuitBreaker with the given config.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{state: StateClosed, cfg: cfg}
}

// Call runs fn when the circuit allows it. When open, returns ErrOpen until
// the timeout has elapsed, then transitions to half-open and probes.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.lastFailureTime) < cb.cfg.Timeout {
			cb.mu.Unlock()
			return ErrOpen
		}
		cb.transition(StateHalfOpen)
		cb.successCount = 0
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = time.Now()
		if cb.state == StateHalfOpen || cb.failureCount >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
			cb.failureCount = 0
		}
		return err
	}

	cb.successCount++
	cb.failureCount = 0
	if cb.state == StateHalfOpen && cb.successCount >= cb.cfg.SuccessThreshold {
		cb.transition(StateClosed)
		cb.successCount = 0
	}
	return nil
}

// State returns the current state (for metrics).
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition must be called with the mutex held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
