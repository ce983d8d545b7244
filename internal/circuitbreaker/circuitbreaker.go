// Package circuitbreaker provides a typed wrapper around sony/gobreaker.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// Config holds circuit breaker configuration.
type Config struct {
	Name        string
	MaxRequests uint32 // requests allowed through while half-open
	Interval    time.Duration
	Timeout     time.Duration // how long the breaker stays open

	// FailureThreshold is the consecutive-failure count that trips
	// the breaker.
	FailureThreshold uint32

	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns sensible defaults for an exchange-facing call.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// CircuitBreaker wraps gobreaker with a typed result.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a circuit breaker from the config.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	return c.cb.Execute(fn)
}

// State returns the breaker's current state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the breaker's name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}
