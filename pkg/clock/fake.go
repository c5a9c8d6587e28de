package clock

import "time"

// Fake is a deterministic clock for tests.  Every call to Now or Since moves
// time forward by Step, so that busy-wait loops polling the clock always make
// progress.  Sleep moves time forward by the requested duration.
type Fake struct {
	now  time.Time
	Step time.Duration

	// Hooks run, in order, after every time change.  Simulated hardware uses
	// them to react to the passage of time.
	hooks []func(now time.Time)
}

func NewFake(step time.Duration) *Fake {
	return &Fake{
		now:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Step: step,
	}
}

func (f *Fake) OnAdvance(hook func(now time.Time)) {
	f.hooks = append(f.hooks, hook)
}

func (f *Fake) Now() time.Time {
	f.Advance(f.Step)
	return f.now
}

func (f *Fake) Since(t time.Time) time.Duration {
	return f.Now().Sub(t)
}

func (f *Fake) Sleep(d time.Duration) {
	f.Advance(d)
}

// Peek returns the current time without advancing it.
func (f *Fake) Peek() time.Time {
	return f.now
}

func (f *Fake) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	f.now = f.now.Add(d)
	for _, h := range f.hooks {
		h(f.now)
	}
}

var _ Clock = (*Fake)(nil)
