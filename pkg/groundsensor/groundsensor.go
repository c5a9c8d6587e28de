package groundsensor

import (
	"time"

	"github.com/pkg/errors"

	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
)

const DefaultThreshold = 200 * time.Millisecond

// Sensor debounces an IR ground/line detector.  It keeps reporting the
// ground as seen until the line has been inactive for the threshold, so a
// brief dropout does not flip it.
type Sensor struct {
	in        hardware.Input
	threshold time.Duration

	sinceActive time.Duration
}

func New(in hardware.Input, threshold time.Duration) *Sensor {
	return &Sensor{
		in:        in,
		threshold: threshold,
	}
}

func Open(hw hardware.Interface, pin int, activeLow bool, threshold time.Duration) (*Sensor, error) {
	in, err := hw.Input(pin, activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "ground sensor %d", pin)
	}
	return New(in, threshold), nil
}

func (s *Sensor) Update(dt time.Duration) error {
	active, err := s.in.Read()
	if err != nil {
		return errors.Wrap(err, "ground sensor read failed")
	}
	if active {
		s.sinceActive = 0
	} else {
		s.sinceActive += dt
	}
	return nil
}

func (s *Sensor) Sensing() bool {
	return s.sinceActive < s.threshold
}

// SinceActive is how long the line has been inactive.
func (s *Sensor) SinceActive() time.Duration {
	return s.sinceActive
}
