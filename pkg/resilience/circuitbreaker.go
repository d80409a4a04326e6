// Package resilience provides a circuit breaker and a token-bucket rate
// limiter for the outbound model, embedding, and store calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/otoasist/otoasist/pkg/fn"
)

// State is the breaker state machine position.
type State int

const (
	StateClosed   State = iota // passing calls through
	StateOpen                  // rejecting calls
	StateHalfOpen              // allowing probe calls
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerOpts configures the breaker.
type BreakerOpts struct {
	// FailThreshold is the consecutive-failure count that trips it.
	FailThreshold int
	// Timeout is how long it stays open before probing.
	Timeout time.Duration
	// HalfOpenMax caps concurrent probe calls in half-open state.
	HalfOpenMax int
}

// DefaultBreakerOpts is the policy used by the outbound clients.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Breaker is a closed/open/half-open circuit breaker.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time // for testing
}

// NewBreaker creates a breaker, filling zero options from
// DefaultBreakerOpts.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState transitions open to half-open once the timeout elapsed.
// Callers must hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
	}
	return b.state
}

// Call runs f through the breaker, returning ErrCircuitOpen without
// invoking f while the circuit is open.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	return b.record(f(ctx))
}

// admit decides whether a call may proceed right now.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.halfOpenCount++
	}
	return nil
}

// record folds the call outcome into the state machine.
func (b *Breaker) record(err error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
		return err
	}
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failures = 0
	return nil
}

// BreakerStage wraps a pipeline stage with breaker protection.
func BreakerStage[In, Out any](b *Breaker, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := b.admit(); err != nil {
			return fn.Err[Out](err)
		}
		r := stage(ctx, in)
		_, err := r.Unwrap()
		if recorded := b.record(err); recorded != nil {
			return fn.Err[Out](recorded)
		}
		return r
	}
}
