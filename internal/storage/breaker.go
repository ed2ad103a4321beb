package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the storage API is considered down
var ErrCircuitOpen = errors.New("storage circuit breaker is open")

// BreakerConfig holds configuration for the storage circuit breaker
type BreakerConfig struct {
	// MaxRequests allowed through while half-open
	MaxRequests uint32
	// Interval clears the closed-state counts
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
}

// DefaultBreakerConfig returns default circuit breaker configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// Breaker guards a Remover so a failing storage API is not called on every
// image cleanup
type Breaker struct {
	next Remover
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next with a circuit breaker
func NewBreaker(next Remover, cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	return &Breaker{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "storage",
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				log.Info().
					Str("circuit_breaker", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Circuit breaker state changed")
			},
			IsSuccessful: func(err error) bool {
				// A cancelled caller says nothing about the storage API
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Remove deletes objects through the breaker
func (b *Breaker) Remove(ctx context.Context, refs ...string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return nil, b.next.Remove(ctx, refs...)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		log.Warn().Int("objects", len(refs)).Msg("Storage circuit breaker is open, skipping delete")
		return ErrCircuitOpen
	}
	return err
}

// State reports closed, open or half-open
func (b *Breaker) State() string {
	return b.cb.State().String()
}
