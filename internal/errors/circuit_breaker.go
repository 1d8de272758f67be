package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	ErrorThreshold      = 0.5
	MinRequests         = 10
	TimeoutDuration     = 30 * time.Second
	HalfOpenMaxRequests = 3
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrCircuitProbing is returned while the half-open breaker already has its probe calls in flight.
	ErrCircuitProbing = errors.New("circuit breaker is probing")
)

// CircuitBreaker opens after the failure rate over MinRequests calls reaches ErrorThreshold,
// rejects calls for TimeoutDuration, then lets HalfOpenMaxRequests probes through.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    State
	calls    int
	failures int
	openedAt time.Time

	counts   func(error) bool
	onChange func(from, to State)
	now      func() time.Time
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithFailureFilter makes the breaker ignore errors for which counts returns false.
// They are still returned to the caller.
func WithFailureFilter(counts func(error) bool) BreakerOption {
	return func(cb *CircuitBreaker) {
		if counts != nil {
			cb.counts = counts
		}
	}
}

// WithStateChange calls fn on every state change. fn runs under the breaker lock.
func WithStateChange(fn func(from, to State)) BreakerOption {
	return func(cb *CircuitBreaker) { cb.onChange = fn }
}

func withClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = now }
}

func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		counts: func(error) bool { return true },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Call runs fn unless the breaker rejects it. fn's error is returned unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < TimeoutDuration {
			return ErrCircuitOpen
		}
		cb.setLocked(StateHalfOpen)
	case StateHalfOpen:
		if cb.calls >= HalfOpenMaxRequests {
			return ErrCircuitProbing
		}
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.calls++
	failed := err != nil && cb.counts(err)
	if failed {
		cb.failures++
	}

	switch {
	case cb.state == StateHalfOpen && failed:
		cb.setLocked(StateOpen)
	case cb.state == StateHalfOpen && cb.calls-cb.failures >= HalfOpenMaxRequests:
		cb.setLocked(StateClosed)
	case cb.state == StateClosed && cb.calls >= MinRequests &&
		float64(cb.failures)/float64(cb.calls) >= ErrorThreshold:
		cb.setLocked(StateOpen)
	}
}

// setLocked switches state and resets the window.
func (cb *CircuitBreaker) setLocked(to State) {
	from := cb.state
	cb.state = to
	cb.calls, cb.failures = 0, 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.onChange != nil && from != to {
		cb.onChange(from, to)
	}
}
