package drive

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
	"github.com/BEN1JEN/cleaning-robot/pkg/pwm"
)

var maskAny = errors.WithStack

// WheelPins are the three H-bridge lines of one motor: the enable line that
// carries the PWM signal and the two direction inputs.
type WheelPins struct {
	Enable int `yaml:"enable"`
	In0    int `yaml:"in0"`
	In1    int `yaml:"in1"`
}

const signUnknown = 2

// Wheel is one motor of the drive.  Positive commands assert In1, negative
// commands assert In0, and a stopped wheel leaves both low.
type Wheel struct {
	pwm      *pwm.Channel
	in0, in1 hardware.Output

	sign    int
	command float64
}

func NewWheel(enable, in0, in1 hardware.Output, frequency float64) (*Wheel, error) {
	ch, err := pwm.New(enable, frequency)
	if err != nil {
		return nil, maskAny(err)
	}
	w := &Wheel{
		pwm:  ch,
		in0:  in0,
		in1:  in1,
		sign: signUnknown,
	}
	if err := w.setDirection(0); err != nil {
		return nil, maskAny(err)
	}
	return w, nil
}

// Set applies a signed wheel command in [-1, 1]; values outside are clamped.
func (w *Wheel) Set(cmd float64) error {
	if math.IsNaN(cmd) {
		cmd = 0
	}
	cmd = pwm.Clamp(cmd, -1, 1)
	sign := 0
	if math.Abs(cmd) > pwm.StoppedDuty {
		if cmd > 0 {
			sign = 1
		} else {
			sign = -1
		}
	}
	if err := w.setDirection(sign); err != nil {
		return maskAny(err)
	}
	if err := w.pwm.SetDuty(cmd); err != nil {
		return maskAny(err)
	}
	w.command = cmd
	return nil
}

// setDirection writes the direction lines when the sign changes.  The line
// being released is always written first so both are never high together.
func (w *Wheel) setDirection(sign int) error {
	if sign == w.sign {
		return nil
	}
	var err error
	switch sign {
	case 0:
		if err = w.in0.Write(false); err == nil {
			err = w.in1.Write(false)
		}
	case 1:
		if err = w.in0.Write(false); err == nil {
			err = w.in1.Write(true)
		}
	case -1:
		if err = w.in1.Write(false); err == nil {
			err = w.in0.Write(true)
		}
	}
	if err != nil {
		w.sign = signUnknown
		return errors.Wrap(err, "direction write failed")
	}
	w.sign = sign
	return nil
}

func (w *Wheel) Command() float64 {
	return w.command
}

func (w *Wheel) Channel() *pwm.Channel {
	return w.pwm
}

// Drive is a differential drive: the robot turns by running its wheels at
// different speeds.
type Drive struct {
	left, right *Wheel
}

func New(left, right *Wheel) *Drive {
	return &Drive{
		left:  left,
		right: right,
	}
}

// Open claims the motor lines from hw and builds a stopped drive.
func Open(hw hardware.Interface, left, right WheelPins, frequency float64) (*Drive, error) {
	openWheel := func(p WheelPins) (*Wheel, error) {
		en, err := hw.Output(p.Enable)
		if err != nil {
			return nil, maskAny(err)
		}
		in0, err := hw.Output(p.In0)
		if err != nil {
			return nil, maskAny(err)
		}
		in1, err := hw.Output(p.In1)
		if err != nil {
			return nil, maskAny(err)
		}
		return NewWheel(en, in0, in1, frequency)
	}
	l, err := openWheel(left)
	if err != nil {
		return nil, errors.Wrap(err, "left wheel")
	}
	r, err := openWheel(right)
	if err != nil {
		return nil, errors.Wrap(err, "right wheel")
	}
	return New(l, r), nil
}

// SetDrive mixes a forward speed and a turn rate into wheel commands.  The
// motors are wired reversed, so both sums are negated to keep positive speed
// meaning forwards.
func (d *Drive) SetDrive(speed, turn float64) error {
	if err := d.left.Set(-(speed + turn)); err != nil {
		return errors.Wrap(err, "left wheel")
	}
	if err := d.right.Set(-(speed - turn)); err != nil {
		return errors.Wrap(err, "right wheel")
	}
	return nil
}

// Update advances both PWM channels by dt.
func (d *Drive) Update(dt time.Duration) error {
	if err := d.left.pwm.Advance(dt); err != nil {
		return errors.Wrap(err, "left wheel")
	}
	if err := d.right.pwm.Advance(dt); err != nil {
		return errors.Wrap(err, "right wheel")
	}
	return nil
}

// Duties returns the signed, clamped wheel commands last applied.
func (d *Drive) Duties() (left, right float64) {
	return d.left.command, d.right.command
}

// Stop zeroes both wheels.  Both are attempted even if the first fails.
func (d *Drive) Stop() error {
	errL := d.left.Set(0)
	errR := d.right.Set(0)
	if errL != nil {
		return errors.Wrap(errL, "left wheel")
	}
	if errR != nil {
		return errors.Wrap(errR, "right wheel")
	}
	return nil
}
