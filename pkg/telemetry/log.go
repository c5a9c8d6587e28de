package telemetry

import (
	"time"

	"github.com/rs/zerolog"
)

// LogSink writes samples to a zerolog logger, at most one per interval.
type LogSink struct {
	log      zerolog.Logger
	interval time.Duration
	last     time.Time
	skipped  int
}

func NewLogSink(log zerolog.Logger, interval time.Duration) *LogSink {
	return &LogSink{
		log:      log.With().Str("component", "telemetry").Logger(),
		interval: interval,
	}
}

func (l *LogSink) Emit(s Sample) {
	if l.interval > 0 && !l.last.IsZero() && s.Time.Sub(l.last) < l.interval {
		l.skipped++
		return
	}
	l.last = s.Time

	e := l.log.Info()
	if s.Front.Valid() {
		e = e.Float64("dist-cm", s.Front.DistanceCM)
	} else {
		e = e.Str("dist", Outcome(s.Front))
	}
	e.Bool("left", s.LeftGround).
		Bool("right", s.RightGround).
		Str("state", s.State.String()).
		Float64("duty-left", s.LeftDuty).
		Float64("duty-right", s.RightDuty).
		Dur("dt", s.DT).
		Int("ticks", l.skipped+1).
		Msg("Tick")
	l.skipped = 0
}
