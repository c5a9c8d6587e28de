// Package rangefinder measures distance with an HC-SR04 style ultrasonic
// module by timing its echo pulse in software.
package rangefinder

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
)

var (
	// ErrNoEcho means the echo line never rose before the timeout: nothing in
	// range, or the module missed the trigger.
	ErrNoEcho = errors.New("no echo")
	// ErrEchoStuck means the echo line never fell before the timeout.
	ErrEchoStuck = errors.New("echo did not end")
	// ErrImplausible means the echo converted to a distance outside the
	// configured window.
	ErrImplausible = errors.New("implausible distance")
)

// MicrosecondsPerCM converts round-trip echo time to distance.
const MicrosecondsPerCM = 58.0

type Config struct {
	// PulseWidth is how long the trigger line is held high.
	PulseWidth time.Duration `yaml:"pulse-width"`
	// Timeout bounds both the wait for the echo to start and its duration.
	Timeout time.Duration `yaml:"timeout"`
	// Readings are accepted when MinCM <= distance < MaxCM.
	MinCM float64 `yaml:"min-cm"`
	MaxCM float64 `yaml:"max-cm"`
}

func DefaultConfig() Config {
	return Config{
		PulseWidth: 10 * time.Microsecond,
		Timeout:    5 * time.Millisecond,
		MinCM:      2,
		MaxCM:      15,
	}
}

func (c Config) Validate() error {
	if c.PulseWidth <= 0 {
		return errors.Errorf("pulse width must be positive, not %v", c.PulseWidth)
	}
	if c.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, not %v", c.Timeout)
	}
	if !(c.MinCM < c.MaxCM) {
		return errors.Errorf("empty distance window [%v, %v)", c.MinCM, c.MaxCM)
	}
	return nil
}

// Reading is the outcome of one measurement.  Err is nil for a usable
// distance, or one of ErrNoEcho, ErrEchoStuck and ErrImplausible.
type Reading struct {
	DistanceCM float64
	Err        error
}

func (r Reading) Valid() bool {
	return r.Err == nil
}

func (r Reading) String() string {
	if r.Err != nil {
		return fmt.Sprintf("none(%v)", r.Err)
	}
	return fmt.Sprintf("%.1fcm", r.DistanceCM)
}

type Rangefinder struct {
	trigger hardware.Output
	echo    hardware.Input
	clock   clock.Clock
	config  Config
}

func New(trigger hardware.Output, echo hardware.Input, clk clock.Clock, config Config) (*Rangefinder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := trigger.Write(false); err != nil {
		return nil, errors.Wrap(err, "trigger write failed")
	}
	return &Rangefinder{
		trigger: trigger,
		echo:    echo,
		clock:   clk,
		config:  config,
	}, nil
}

// Open claims the trigger and echo lines from hw.
func Open(hw hardware.Interface, triggerPin, echoPin int, clk clock.Clock, config Config) (*Rangefinder, error) {
	trigger, err := hw.Output(triggerPin)
	if err != nil {
		return nil, errors.Wrap(err, "trigger")
	}
	echo, err := hw.Input(echoPin, false)
	if err != nil {
		return nil, errors.Wrap(err, "echo")
	}
	return New(trigger, echo, clk, config)
}

// Measure fires the trigger and times the echo.  A missing or implausible
// echo is reported in the Reading; the error is only set when a line could
// not be read or written.  Each wait is bounded by Config.Timeout.
func (r *Rangefinder) Measure() (Reading, error) {
	if err := r.trigger.Write(true); err != nil {
		return Reading{}, errors.Wrap(err, "trigger write failed")
	}
	r.clock.Sleep(r.config.PulseWidth)
	if err := r.trigger.Write(false); err != nil {
		return Reading{}, errors.Wrap(err, "trigger write failed")
	}

	start := r.clock.Now()
	for {
		high, err := r.echo.Read()
		if err != nil {
			return Reading{}, errors.Wrap(err, "echo read failed")
		}
		if high {
			break
		}
		if r.clock.Since(start) > r.config.Timeout {
			return Reading{Err: ErrNoEcho}, nil
		}
	}

	rise := r.clock.Now()
	var width time.Duration
	for {
		high, err := r.echo.Read()
		if err != nil {
			return Reading{}, errors.Wrap(err, "echo read failed")
		}
		width = r.clock.Since(rise)
		if !high {
			break
		}
		if width > r.config.Timeout {
			return Reading{Err: ErrEchoStuck}, nil
		}
	}

	cm := PulseToCM(width)
	if !r.config.InWindow(cm) {
		return Reading{DistanceCM: cm, Err: ErrImplausible}, nil
	}
	return Reading{DistanceCM: cm}, nil
}

func (c Config) InWindow(cm float64) bool {
	return cm >= c.MinCM && cm < c.MaxCM
}

// PulseToCM converts the echo high time to centimetres.
func PulseToCM(width time.Duration) float64 {
	return width.Seconds() * 1e6 / MicrosecondsPerCM
}
