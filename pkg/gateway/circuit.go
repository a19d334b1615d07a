package gateway

import (
	"sync"
	"time"
)

// CircuitState is the state of a Breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker stops calling a gateway that keeps failing with transient errors, so
// checkout and cancel requests fail fast with ErrGatewayUnavailable instead of
// waiting out every timeout. Rejections do not count as failures.
// Safe for concurrent use.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time

	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker opens after failureThreshold consecutive transient failures and
// probes again once recoveryTimeout has passed.
func NewBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may go out. An open circuit turns half-open
// after the recovery timeout.
func (b *Breaker) Allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitOpen:
		if b.now().Sub(b.lastFailure) > b.recoveryTimeout {
			b.state = CircuitHalfOpen
			b.successes = 0
			return true
		}
		return false
	default:
		return true
	}
}

// Record feeds the outcome of a call into the breaker.
func (b *Breaker) Record(err error) {
	if b == nil {
		return
	}
	if err != nil && transient(err) {
		b.failure()
		return
	}
	b.success()
}

func (b *Breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		b.failures = 0
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = CircuitClosed
			b.failures = 0
			b.successes = 0
		}
	}
}

func (b *Breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.state = CircuitOpen
		}
	case CircuitHalfOpen:
		b.state = CircuitOpen
		b.successes = 0
	}
}

// State returns the current state, reporting half-open once an open circuit
// is due for a probe.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen && b.now().Sub(b.lastFailure) > b.recoveryTimeout {
		return CircuitHalfOpen
	}
	return b.state
}
