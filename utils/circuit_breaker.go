package utils

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests when circuit breaker is half open")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// BreakerSettings tunes when the breaker trips and how long it stays open.
type BreakerSettings struct {
	MaxHalfOpenRequests uint32
	Interval            time.Duration
	Timeout             time.Duration
	MinRequests         uint32
	FailureRatio        float64
	MaxConsecutiveFails uint32
}

// CircuitBreaker guards calls to the payment gateway.
type CircuitBreaker struct {
	name     string
	settings BreakerSettings

	mutex      sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	now        func() time.Time
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxHalfOpenRequests: 1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		MinRequests:         10,
		FailureRatio:        0.6,
		MaxConsecutiveFails: 5,
	}
}

func NewCircuitBreaker(name string, settings BreakerSettings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
	cb.toNewGeneration(cb.now())
	return cb
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state, moving open to half-open once the timeout passed.
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	state, _ := cb.currentState(cb.now())
	return state
}

// Execute runs req if the breaker allows it and records the outcome.
// Context cancellation is not counted as a gateway failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, req func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	generation, err := cb.beforeRequest()
	if err != nil {
		return nil, err
	}

	defer func() {
		if e := recover(); e != nil {
			cb.afterRequest(generation, false)
			panic(e)
		}
	}()

	result, err := req()
	success := err == nil || errors.Is(err, context.Canceled)
	cb.afterRequest(generation, success)
	return result, err
}

func (cb *CircuitBreaker) beforeRequest() (uint64, error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	state, generation := cb.currentState(cb.now())

	if state == StateOpen {
		return generation, ErrCircuitOpen
	} else if state == StateHalfOpen && cb.counts.Requests >= cb.settings.MaxHalfOpenRequests {
		return generation, ErrTooManyRequests
	}

	cb.counts.Requests++
	return generation, nil
}

func (cb *CircuitBreaker) afterRequest(before uint64, success bool) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	now := cb.now()
	state, generation := cb.currentState(now)
	if generation != before {
		return
	}

	if success {
		cb.onSuccess(state, now)
	} else {
		cb.onFailure(state, now)
	}
}

func (cb *CircuitBreaker) onSuccess(state State, now time.Time) {
	cb.counts.TotalSuccesses++
	cb.counts.ConsecutiveSuccesses++
	cb.counts.ConsecutiveFailures = 0

	if state == StateHalfOpen {
		cb.setState(StateClosed, now)
	}
}

func (cb *CircuitBreaker) onFailure(state State, now time.Time) {
	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch state {
	case StateClosed:
		if cb.readyToTrip() {
			cb.setState(StateOpen, now)
		}
	case StateHalfOpen:
		cb.setState(StateOpen, now)
	}
}

func (cb *CircuitBreaker) readyToTrip() bool {
	if cb.settings.MaxConsecutiveFails > 0 && cb.counts.ConsecutiveFailures >= cb.settings.MaxConsecutiveFails {
		return true
	}
	return cb.counts.Requests >= cb.settings.MinRequests &&
		float64(cb.counts.TotalFailures)/float64(cb.counts.Requests) >= cb.settings.FailureRatio
}

func (cb *CircuitBreaker) currentState(now time.Time) (State, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.toNewGeneration(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.setState(StateHalfOpen, now)
		}
	}
	return cb.state, cb.generation
}

func (cb *CircuitBreaker) setState(state State, now time.Time) {
	if cb.state == state {
		return
	}
	cb.state = state
	cb.toNewGeneration(now)
}

func (cb *CircuitBreaker) toNewGeneration(now time.Time) {
	cb.generation++
	cb.counts = Counts{}

	var zero time.Time
	switch cb.state {
	case StateClosed:
		if cb.settings.Interval > 0 {
			cb.expiry = now.Add(cb.settings.Interval)
		} else {
			cb.expiry = zero
		}
	case StateOpen:
		cb.expiry = now.Add(cb.settings.Timeout)
	default:
		cb.expiry = zero
	}
}
