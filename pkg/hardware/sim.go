package hardware

import (
	"github.com/rs/zerolog"
)

// Sim is an in-memory GPIO backend.  Lines are created on first use and keep
// whatever level was last written or set, so tests can drive inputs and
// inspect outputs.
type Sim struct {
	log   zerolog.Logger
	lines map[int]*Line
}

func NewSim(log zerolog.Logger) *Sim {
	return &Sim{
		log:   log,
		lines: map[int]*Line{},
	}
}

// Line returns the simulated line for pin, creating it if needed.
func (s *Sim) Line(pin int) *Line {
	l, ok := s.lines[pin]
	if !ok {
		l = &Line{Pin: pin}
		s.lines[pin] = l
	}
	return l
}

func (s *Sim) Output(pin int) (Output, error) {
	l := s.Line(pin)
	if l.Fail != nil {
		return nil, l.Fail
	}
	l.level = false
	s.log.Debug().Int("pin", pin).Msg("SIM: output")
	return l, nil
}

func (s *Sim) Input(pin int, activeLow bool) (Input, error) {
	l := s.Line(pin)
	if l.Fail != nil {
		return nil, l.Fail
	}
	s.log.Debug().Int("pin", pin).Bool("active-low", activeLow).Msg("SIM: input")
	return maybeInvert(l, activeLow), nil
}

func (s *Sim) Close() error {
	for _, l := range s.lines {
		l.level = false
	}
	s.log.Debug().Msg("SIM: closed")
	return nil
}

// Line is one simulated digital line.
type Line struct {
	Pin int

	// Fail, when set, is returned by every operation on the line.
	Fail error
	// Source, when set, supplies the level seen by Read.
	Source func() bool
	// OnWrite is called after every successful Write.
	OnWrite func(high bool)

	level  bool
	Writes int
}

func (l *Line) Write(high bool) error {
	if l.Fail != nil {
		return l.Fail
	}
	l.level = high
	l.Writes++
	if l.OnWrite != nil {
		l.OnWrite(high)
	}
	return nil
}

func (l *Line) Read() (bool, error) {
	if l.Fail != nil {
		return false, l.Fail
	}
	if l.Source != nil {
		return l.Source(), nil
	}
	return l.level, nil
}

// Set changes the level of the line as if driven externally.
func (l *Line) Set(high bool) {
	l.level = high
}

func (l *Line) Level() bool {
	return l.level
}

var _ Interface = (*Sim)(nil)
