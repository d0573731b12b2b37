// Package client implements the client side of the chat protocol, including
// the bounded reconnection policy used when the server connection drops.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnableToConnect is returned once the retry budget is spent. It stays
// returned until Reset is called.
var ErrUnableToConnect = errors.New("unable to connect")

// Policy is a fixed number of attempts with a fixed delay between them.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy returns 5 attempts one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, Delay: time.Second}
}

// State of the reconnection state machine.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateWaiting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateWaiting:
		return "waiting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reconnector drives connection attempts according to a Policy.
type Reconnector struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	attempts int
	lastErr  error
}

// NewReconnector builds a reconnector. MaxAttempts below 1 is treated as 1.
func NewReconnector(policy Policy) *Reconnector {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	return &Reconnector{policy: policy, sleep: sleepCtx}
}

// Connect calls dial until it succeeds or the budget is exhausted.
// Context cancellation aborts immediately and does not mark the reconnector failed.
func (r *Reconnector) Connect(ctx context.Context, dial func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.state == StateFailed {
		err := r.failure()
		r.mu.Unlock()
		return err
	}
	r.attempts = 0
	r.mu.Unlock()

	for {
		r.transition(StateConnecting)
		r.mu.Lock()
		r.attempts++
		attempt := r.attempts
		r.mu.Unlock()

		err := dial(ctx)
		if err == nil {
			r.mu.Lock()
			r.state = StateConnected
			r.lastErr = nil
			r.mu.Unlock()
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.transition(StateIdle)
			return ctxErr
		}

		r.mu.Lock()
		r.lastErr = err
		if attempt >= r.policy.MaxAttempts {
			r.state = StateFailed
			failure := r.failure()
			r.mu.Unlock()
			return failure
		}
		r.state = StateWaiting
		r.mu.Unlock()

		if err := r.sleep(ctx, r.policy.Delay); err != nil {
			r.transition(StateIdle)
			return err
		}
	}
}

// Reset clears a failed state so Connect may try again.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateIdle
	r.attempts = 0
	r.lastErr = nil
}

// State returns the current state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns how many dials the latest Connect made.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Reconnector) transition(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// failure must be called with mu held.
func (r *Reconnector) failure() error {
	if r.lastErr == nil {
		return fmt.Errorf("%w after %d attempts", ErrUnableToConnect, r.attempts)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrUnableToConnect, r.attempts, r.lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
