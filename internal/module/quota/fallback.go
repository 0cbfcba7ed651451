package quota

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Recorder receives quota telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordQuotaDecision(tierClass string, admitted bool)
	RecordQuotaFallback(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordQuotaDecision(string, bool) {}
func (nopRecorder) RecordQuotaFallback(string)       {}

// FallbackConfig tunes the primary store's timeout and circuit breaker.
type FallbackConfig struct {
	// Timeout bounds every primary call.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive primary failures that opens the breaker.
	BreakerFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing the primary again.
	BreakerTimeout time.Duration
}

// DefaultFallbackConfig returns sub-second store calls and a short open window.
func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		Timeout:         500 * time.Millisecond,
		BreakerFailures: 3,
		BreakerTimeout:  30 * time.Second,
	}
}

// FallbackStore answers from primary and switches to fallback whenever primary fails or its
// breaker is open. Callers never see a primary error.
type FallbackStore struct {
	primary  Store
	fallback Store
	breaker  *gobreaker.CircuitBreaker[int]
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

var _ Store = (*FallbackStore)(nil)

// NewFallbackStore wraps primary with fallback.
func NewFallbackStore(primary, fallback Store, cfg FallbackConfig, logger *zap.Logger, recorder Recorder) *FallbackStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFallbackConfig().Timeout
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultFallbackConfig().BreakerFailures
	}

	threshold := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "quota-store",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A caller that went away says nothing about the primary. Its own timeout still counts.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("quota store breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &FallbackStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		timeout:  cfg.Timeout,
		logger:   logger,
		recorder: recorder,
	}
}

// Get reads from primary, or from fallback when primary is unavailable.
func (s *FallbackStore) Get(ctx context.Context, userID string, day int64) (int, error) {
	return s.run(ctx, "get", userID, day, s.primary.Get, s.fallback.Get)
}

// Increment counts on primary, or on fallback when primary is unavailable.
func (s *FallbackStore) Increment(ctx context.Context, userID string, day int64) (int, error) {
	return s.run(ctx, "increment", userID, day, s.primary.Increment, s.fallback.Increment)
}

type storeOp func(ctx context.Context, userID string, day int64) (int, error)

func (s *FallbackStore) run(ctx context.Context, op, userID string, day int64, primary, fallback storeOp) (int, error) {
	n, err := s.breaker.Execute(func() (int, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return primary(callCtx, userID, day)
	})
	if err == nil {
		return n, nil
	}
	if ctx.Err() != nil {
		return fallback(ctx, userID, day)
	}

	s.logger.Warn("quota store degraded to in-process fallback",
		zap.String("operation", op),
		zap.String("user_id", userID),
		zap.Int64("day", day),
		zap.Error(err),
	)
	s.recorder.RecordQuotaFallback(op)

	return fallback(ctx, userID, day)
}
