package tunable

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
)

func TestSelectWraps(t *testing.T) {
	ts := New(zerolog.Nop())
	a := ts.Create("a", 1, 1)
	b := ts.Create("b", 2, 1)

	if ts.Current() != a {
		t.Fatal("First tunable should start selected")
	}
	ts.SelectNext()
	if ts.Current() != b {
		t.Fatal("SelectNext should move to b")
	}
	ts.SelectNext()
	if ts.Current() != a {
		t.Fatal("SelectNext should wrap to a")
	}
	ts.SelectPrev()
	if ts.Current() != b {
		t.Fatal("SelectPrev should wrap to b")
	}
}

func TestStepsDoNotDrift(t *testing.T) {
	ts := New(zerolog.Nop())
	speed := ts.Create("speed", 0.4, 0.01)
	for i := 0; i < 1000; i++ {
		ts.Adjust(1)
	}
	for i := 0; i < 1000; i++ {
		ts.Adjust(-1)
	}
	if math.Abs(speed.Get()-0.4) > 1e-12 {
		t.Fatalf("Expected 0.4 after balanced adjustments, got %v", speed.Get())
	}
	ts.Adjust(5)
	if math.Abs(speed.Get()-0.45) > 1e-12 {
		t.Fatalf("Expected 0.45, got %v", speed.Get())
	}
}
