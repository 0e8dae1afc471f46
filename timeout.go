package tntcore

import (
	"context"
	"errors"
	"time"
)

// maxSaturatingDuration is the deadline horizon Timeout clamps to when
// asked for a duration so large that now().Add(d) would be meaningless
// ("effectively never" per the combinator's own overflow rule).
const maxSaturatingDuration = 100 * 365 * 24 * time.Hour

// saturatingDeadline clamps d into a range context.WithTimeout can safely
// turn into a wall-clock deadline, so a caller-supplied time.Duration of
// time.Duration(math.MaxInt64) (or a negative value from an overflowed
// computation upstream) never produces a nonsensical or immediately-past
// deadline.
func saturatingDeadline(d time.Duration) time.Duration {
	if d < 0 || d > maxSaturatingDuration {
		return maxSaturatingDuration
	}
	return d
}

// Timeout wraps fn with a deadline computed once as now+d, saturating
// rather than overflowing for very large d. fn must itself select on the
// context it is given; Timeout only translates a resulting
// context.DeadlineExceeded into ErrExpired; any other error or value from
// fn passes through unchanged. Cancelling ctx cancels fn the same way.
func Timeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	dctx, cancel := context.WithTimeout(ctx, saturatingDeadline(d))
	defer cancel()

	v, err := fn(dctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return v, ErrExpired
	}
	return v, err
}
