// Package behavior is the reactive state machine that decides what the drive
// does on every tick: wander forwards, and back off with a timed turn when
// the front rangefinder sees an obstacle.
package behavior

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
)

type Kind int

const (
	// Off is only entered by Override.
	Off Kind = iota
	Wander
	TurnLeft
	TurnRight
)

func (k Kind) String() string {
	switch k {
	case Off:
		return "off"
	case Wander:
		return "wander"
	case TurnLeft:
		return "turn-left"
	case TurnRight:
		return "turn-right"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

type State struct {
	Kind Kind
	// Elapsed is the time spent turning; zero outside the turn states.
	Elapsed time.Duration
}

func (s State) String() string {
	switch s.Kind {
	case TurnLeft, TurnRight:
		return fmt.Sprintf("%v(%v)", s.Kind, s.Elapsed)
	default:
		return s.Kind.String()
	}
}

// Driver is the part of the drive the controller commands.
type Driver interface {
	SetDrive(speed, turn float64) error
}

// Coin picks the turn direction when an obstacle is found.
type Coin interface {
	Flip() bool
}

type randCoin struct {
	rng *rand.Rand
}

func NewRandomCoin(seed int64) Coin {
	return &randCoin{rng: rand.New(rand.NewSource(seed))}
}

func (c *randCoin) Flip() bool {
	return c.rng.Intn(2) == 1
}

type Params struct {
	WanderSpeed float64 `yaml:"wander-speed"`
	// Turns back away from an obstacle at TurnSpeed while rotating at TurnRate.
	TurnSpeed    float64       `yaml:"turn-speed"`
	TurnRate     float64       `yaml:"turn-rate"`
	TurnDuration time.Duration `yaml:"turn-duration"`
	ObstacleCM   float64       `yaml:"obstacle-cm"`
}

func DefaultParams() Params {
	return Params{
		WanderSpeed:  0.4,
		TurnSpeed:    -0.4,
		TurnRate:     0.6,
		TurnDuration: time.Second,
		ObstacleCM:   6,
	}
}

type Controller struct {
	log    zerolog.Logger
	drive  Driver
	coin   Coin
	params Params

	state     State
	listeners []func(from, to State)
}

func New(drive Driver, coin Coin, params Params, log zerolog.Logger) *Controller {
	return &Controller{
		log:    log.With().Str("component", "behavior").Logger(),
		drive:  drive,
		coin:   coin,
		params: params,
		state:  State{Kind: Wander},
	}
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Params() Params {
	return c.params
}

func (c *Controller) SetParams(p Params) {
	c.params = p
}

// Notify registers fn to be called on every change of state kind.
func (c *Controller) Notify(fn func(from, to State)) {
	c.listeners = append(c.listeners, fn)
}

// Override forces the controller into kind, with a fresh turn timer.
func (c *Controller) Override(kind Kind) {
	c.transition(State{Kind: kind}, "override")
}

// Step issues this tick's drive command for the current state and then
// decides the next state from the front reading taken in the same tick.
func (c *Controller) Step(dt time.Duration, front rangefinder.Reading) error {
	p := c.params
	switch c.state.Kind {
	case Wander:
		if err := c.drive.SetDrive(p.WanderSpeed, 0); err != nil {
			return errors.Wrap(err, "wander")
		}
		if front.Valid() && front.DistanceCM < p.ObstacleCM {
			next := State{Kind: TurnRight}
			if c.coin.Flip() {
				next.Kind = TurnLeft
			}
			c.transition(next, "obstacle")
		}
	case TurnLeft, TurnRight:
		turn := p.TurnRate
		if c.state.Kind == TurnLeft {
			turn = -turn
		}
		if err := c.drive.SetDrive(p.TurnSpeed, turn); err != nil {
			return errors.Wrap(err, c.state.Kind.String())
		}
		c.state.Elapsed += dt
		if c.state.Elapsed >= p.TurnDuration {
			c.transition(State{Kind: Wander}, "turn done")
		}
	case Off:
		if err := c.drive.SetDrive(p.TurnSpeed, p.TurnRate); err != nil {
			return errors.Wrap(err, "off")
		}
	}
	return nil
}

func (c *Controller) transition(next State, reason string) {
	if next.Kind != c.state.Kind {
		c.log.Debug().
			Str("from", c.state.String()).
			Str("to", next.String()).
			Str("reason", reason).
			Msg("State change")
	}
	prev := c.state
	c.state = next
	if next.Kind != prev.Kind {
		for _, fn := range c.listeners {
			fn(prev, next)
		}
	}
}
