package clock

import (
	"testing"
	"time"
)

func TestFakeStepsOnEveryRead(t *testing.T) {
	f := NewFake(time.Microsecond)
	start := f.Peek()

	f.Now()
	f.Now()
	if got := f.Peek().Sub(start); got != 2*time.Microsecond {
		t.Fatalf("Expected two steps, got %v", got)
	}

	if d := f.Since(start); d != 3*time.Microsecond {
		t.Fatalf("Since should step then measure, got %v", d)
	}
}

func TestFakeSleepRunsHooks(t *testing.T) {
	f := NewFake(0)
	var seen []time.Duration
	start := f.Peek()
	f.OnAdvance(func(now time.Time) {
		seen = append(seen, now.Sub(start))
	})

	f.Sleep(10 * time.Microsecond)
	f.Now() // zero step, no hook
	f.Sleep(5 * time.Microsecond)

	if len(seen) != 2 || seen[0] != 10*time.Microsecond || seen[1] != 15*time.Microsecond {
		t.Fatalf("Unexpected hook calls: %v", seen)
	}
}
