package orders

import (
	"context"
	"time"
)

// TimerState is the persisted preparation stopwatch.
// LastStartedAt is non-nil exactly while the stopwatch runs.
type TimerState struct {
	AccumulatedSeconds int64
	LastStartedAt      *time.Time
}

// OnEnterPreparing starts (or resumes) the stopwatch, keeping prior accumulation.
func OnEnterPreparing(t TimerState, now time.Time) TimerState {
	started := now
	return TimerState{
		AccumulatedSeconds: t.AccumulatedSeconds,
		LastStartedAt:      &started,
	}
}

// OnEnterReadyOrDelivered folds the running interval into the accumulated seconds.
//
// When PREPARING was skipped entirely the whole queue-to-finish duration since
// createdAt is charged as preparation time. Reports rely on this; do not "fix" it.
// A stopwatch that ran and was paused below one second is not a skip.
func OnEnterReadyOrDelivered(t TimerState, createdAt, now time.Time, skippedPreparing bool) TimerState {
	switch {
	case t.LastStartedAt != nil:
		return TimerState{AccumulatedSeconds: t.AccumulatedSeconds + secondsBetween(*t.LastStartedAt, now)}
	case skippedPreparing && t.AccumulatedSeconds == 0:
		return TimerState{AccumulatedSeconds: secondsBetween(createdAt, now)}
	default:
		return t
	}
}

// OnEnterCancelled stops the stopwatch without charging the running interval.
func OnEnterCancelled(t TimerState) TimerState {
	return TimerState{AccumulatedSeconds: t.AccumulatedSeconds}
}

// Pause folds the running interval and leaves the stopwatch stopped.
func Pause(t TimerState, now time.Time) TimerState {
	if t.LastStartedAt == nil {
		return t
	}
	return TimerState{AccumulatedSeconds: t.AccumulatedSeconds + secondsBetween(*t.LastStartedAt, now)}
}

// ElapsedNow is the live preparation time for display.
func ElapsedNow(o *Order, now time.Time) int64 {
	if o.Status == StatusReady || o.Status == StatusDelivered || o.TimerLastStartedAt == nil {
		return o.TimerAccumulatedSeconds
	}
	return o.TimerAccumulatedSeconds + secondsBetween(*o.TimerLastStartedAt, now)
}

// secondsBetween floors to whole seconds; clock skew never yields a negative charge.
func secondsBetween(from, to time.Time) int64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Tick calls fn with the live elapsed seconds on every interval while the order is
// being prepared. It never writes anything; it returns when ctx is done.
func Tick(ctx context.Context, interval time.Duration, current func() *Order, now func() time.Time, fn func(elapsed int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o := current()
			if o == nil || o.Status != StatusPreparing {
				return
			}
			fn(ElapsedNow(o, now()))
		}
	}
}
