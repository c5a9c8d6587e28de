// Package telemetry publishes what the control loop saw and did on each
// tick.  Sinks are fire-and-forget: they must not block the loop.
package telemetry

import (
	"time"

	"github.com/pkg/errors"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
)

type Sample struct {
	Time time.Time
	DT   time.Duration

	Front       rangefinder.Reading
	LeftGround  bool
	RightGround bool

	State     behavior.State
	LeftDuty  float64
	RightDuty float64
}

type Sink interface {
	Emit(s Sample)
}

// Multi fans a sample out to several sinks.
type Multi []Sink

func (m Multi) Emit(s Sample) {
	for _, sink := range m {
		sink.Emit(s)
	}
}

// Outcome names the result of a front reading for logs and metric labels.
func Outcome(r rangefinder.Reading) string {
	switch errors.Cause(r.Err) {
	case nil:
		return "ok"
	case rangefinder.ErrNoEcho:
		return "no-echo"
	case rangefinder.ErrEchoStuck:
		return "echo-stuck"
	case rangefinder.ErrImplausible:
		return "implausible"
	default:
		return "error"
	}
}
