// Package circuit provides a two-state circuit breaker for calls to external collaborators.
package circuit

import "sync"

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Breaker counts consecutive failures of a dependency. After FailureThreshold
// consecutive failures it opens; while open, SuccessThreshold consecutive
// successes close it again. Callers keep calling the dependency while open and
// decide themselves whether to serve a fallback.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	onChange         func(name string, to State)
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the number of consecutive failures to open the circuit. Default 5.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the number of consecutive successes to close the circuit. Default 3.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithStateChangeHook registers a callback invoked after every transition.
// It runs outside the breaker lock.
func WithStateChangeHook(fn func(name string, to State)) Option {
	return func(b *Breaker) {
		b.onChange = fn
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: 5,
		successThreshold: 3,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// IsOpen returns true if the circuit is open (tripped).
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordFailure records a failed call and reports whether the circuit is open afterwards.
func (b *Breaker) RecordFailure() (open bool) {
	b.mu.Lock()
	b.failureCount++
	b.successCount = 0
	opened := false
	if b.state == StateClosed && b.failureCount >= b.failureThreshold {
		b.state = StateOpen
		opened = true
	}
	open = b.state == StateOpen
	b.mu.Unlock()

	if opened {
		b.notify(StateOpen)
	}
	return open
}

// RecordSuccess records a successful call and reports whether the circuit is closed afterwards.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	recovered := false
	if b.state == StateOpen {
		b.successCount++
		if b.successCount >= b.successThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
			recovered = true
		}
	} else {
		b.failureCount = 0
	}
	closed = b.state == StateClosed
	b.mu.Unlock()

	if recovered {
		b.notify(StateClosed)
	}
	return closed
}

// Reset closes the circuit and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failureCount = 0
	b.successCount = 0
}

func (b *Breaker) notify(to State) {
	if b.onChange != nil {
		b.onChange(b.name, to)
	}
}
