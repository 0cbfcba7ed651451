package quota

import (
	"context"

	"go.uber.org/zap"
)

// Decision is the outcome of a quota check, computed before the current request is counted.
type Decision struct {
	Used         int
	Limit        int
	Remaining    int
	LimitReached bool
}

// Limiter applies the tier policy to the counter store.
//
// Check and Consume are separate calls. Callers check before the gated operation and consume
// only after it succeeded, so concurrent requests from one user may overrun the allowance by
// at most the number of requests in flight.
type Limiter struct {
	store    Store
	policy   TierPolicy
	now      Clock
	logger   *zap.Logger
	recorder Recorder
}

// NewLimiter creates a limiter. A nil clock uses the wall clock.
func NewLimiter(store Store, policy TierPolicy, now Clock, logger *zap.Logger, recorder Recorder) *Limiter {
	if now == nil {
		now = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Limiter{store: store, policy: policy, now: now, logger: logger, recorder: recorder}
}

// Allowance returns the daily allowance for tier.
func (l *Limiter) Allowance(tier string) int {
	return l.policy.Allowance(tier)
}

// Check reports how many generations userID has left today. It never mutates state.
// A store failure admits the request.
func (l *Limiter) Check(ctx context.Context, userID, tier string) Decision {
	limit := l.policy.Allowance(tier)

	used, err := l.store.Get(ctx, userID, DayID(l.now()))
	if err != nil {
		l.logger.Warn("quota check failed, admitting request",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		used = 0
	}

	d := Decision{
		Used:         used,
		Limit:        limit,
		Remaining:    max(0, limit-used),
		LimitReached: used >= limit,
	}
	l.recorder.RecordQuotaDecision(l.policy.Class(tier), !d.LimitReached)
	return d
}

// Consume counts one generation for userID today and returns the new count.
// A store failure is logged and reported as 0.
func (l *Limiter) Consume(ctx context.Context, userID, tier string) int {
	n, err := l.store.Increment(ctx, userID, DayID(l.now()))
	if err != nil {
		l.logger.Error("quota consume failed",
			zap.String("user_id", userID),
			zap.String("tier", NormalizeTier(tier)),
			zap.Error(err),
		)
		return 0
	}
	return n
}
