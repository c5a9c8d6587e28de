// Package pwm generates a square wave on a plain digital output by toggling it
// from the control loop, for boards where no hardware PWM block is wired to
// the motor driver.
package pwm

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
)

const (
	// DefaultFrequency keeps the period longer than the slowest control loop
	// tick, which includes two rangefinder timeouts.
	DefaultFrequency = 50.0

	// Duty magnitudes at or below StoppedDuty hold the line low.  Without this
	// the off time approaches a full period and the on time approaches zero,
	// which the loop cannot resolve.
	StoppedDuty = 1e-4
)

type Channel struct {
	out       hardware.Output
	frequency float64

	duty  float64
	timer time.Duration
	on    bool
	high  bool
}

func New(out hardware.Output, frequency float64) (*Channel, error) {
	if !(frequency > 0) {
		return nil, errors.Errorf("PWM frequency must be positive, not %v", frequency)
	}
	// Starts in the stopped sub-state.
	c := &Channel{
		out:       out,
		frequency: frequency,
		on:        true,
	}
	if err := c.write(false); err != nil {
		return nil, err
	}
	return c, nil
}

// SetDuty sets the duty cycle to |d|, with d clamped to [-1, 1], and starts a
// new on phase.  Repeating the current duty leaves the phase running,
// whichever phase it is in, so the loop can re-issue the same command every
// tick without pinning the line high.
func (c *Channel) SetDuty(d float64) error {
	if math.IsNaN(d) {
		d = 0
	}
	duty := math.Abs(Clamp(d, -1, 1))
	if duty == c.duty {
		return nil
	}
	c.duty = duty
	c.on = true
	c.timer = 0
	return c.write(!c.Stopped())
}

// Stop holds the line low.
func (c *Channel) Stop() error {
	return c.SetDuty(0)
}

// Advance moves the phase timer on by dt and toggles the line when the
// current phase has run its course.
func (c *Channel) Advance(dt time.Duration) error {
	c.timer += dt
	if c.Stopped() {
		if c.high {
			return c.write(false)
		}
		return nil
	}
	if c.on {
		if c.timer >= c.onTime() {
			c.on = false
			c.timer = 0
			return c.write(false)
		}
	} else if c.timer >= c.offTime() {
		c.on = true
		c.timer = 0
		return c.write(true)
	}
	return nil
}

func (c *Channel) onTime() time.Duration {
	return seconds(c.duty / c.frequency)
}

func (c *Channel) offTime() time.Duration {
	return seconds((1 - c.duty) / c.frequency)
}

func (c *Channel) write(high bool) error {
	if err := c.out.Write(high); err != nil {
		return errors.Wrap(err, "PWM write failed")
	}
	c.high = high
	return nil
}

// Duty returns the active duty cycle magnitude.
func (c *Channel) Duty() float64 {
	return c.duty
}

func (c *Channel) Frequency() float64 {
	return c.frequency
}

// Stopped reports whether the duty is small enough that the line is held low.
func (c *Channel) Stopped() bool {
	return c.duty <= StoppedDuty
}

// On reports the phase.  A stopped channel reports on but never drives the
// line high.
func (c *Channel) On() bool {
	return c.on
}

// High reports the level last written to the line.
func (c *Channel) High() bool {
	return c.high
}

func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
