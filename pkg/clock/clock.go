package clock

import "time"

// Clock is the monotonic time source used for tick deltas and for the
// rangefinder's echo timing.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

type system struct{}

// System returns the wall clock.
func System() Clock {
	return system{}
}

func (system) Now() time.Time {
	return time.Now()
}

func (system) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (system) Sleep(d time.Duration) {
	time.Sleep(d)
}
