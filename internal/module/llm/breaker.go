package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerProvider stops calling a failing provider until the open window elapses.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker[*Completion]
}

var _ Provider = (*BreakerProvider)(nil)

// NewBreakerProvider wraps next with a circuit breaker.
func NewBreakerProvider(next Provider, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := cfg.FailureThreshold
	return &BreakerProvider{
		next: next,
		breaker: gobreaker.NewCircuitBreaker[*Completion](gobreaker.Settings{
			Name:        next.Name(),
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			// Caller cancellation and empty answers say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil ||
					errors.Is(err, context.Canceled) ||
					errors.Is(err, ErrEmptyCompletion)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("llm circuit breaker state changed",
					zap.String("provider", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
	}
}

// Name returns the wrapped provider's name.
func (p *BreakerProvider) Name() string {
	return p.next.Name()
}

// Complete calls the wrapped provider unless the circuit is open.
func (p *BreakerProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	out, err := p.breaker.Execute(func() (*Completion, error) {
		return p.next.Complete(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, err
}

// State reports the breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
