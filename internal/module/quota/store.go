// Package quota implements per-user daily generation allowances: the counter store backends,
// the tier policy and the limiter that combines them.
package quota

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is returned by a backend that cannot serve the call.
var ErrStoreUnavailable = errors.New("quota store unavailable")

// Store is a counter keyed by (user, day). Increment must be atomic with respect to
// concurrent callers; implementations never read-modify-write in application code.
type Store interface {
	// Get returns the count recorded for userID on day, or 0 when none exists.
	Get(ctx context.Context, userID string, day int64) (int, error)
	// Increment adds one to the counter for userID on day and returns the new count.
	Increment(ctx context.Context, userID string, day int64) (int, error)
}

// Clock returns the current time. Tests inject a fixed or stepping clock.
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time { return time.Now() }

const secondsPerDay = 86400

// DayID returns the UTC calendar day of t as floor(unix_seconds / 86400).
func DayID(t time.Time) int64 {
	sec := t.Unix()
	day := sec / secondsPerDay
	if sec < 0 && sec%secondsPerDay != 0 {
		day--
	}
	return day
}
