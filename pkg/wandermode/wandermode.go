// Package wandermode runs the autonomous control loop: every tick it updates
// the ground sensors, advances the software PWM, samples the front
// rangefinder and lets the behavior controller issue a drive command, in that
// order and on one goroutine.
package wandermode

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/joystick"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
	"github.com/BEN1JEN/cleaning-robot/pkg/tunable"
)

type Ranger interface {
	Measure() (rangefinder.Reading, error)
}

type Ground interface {
	Update(dt time.Duration) error
	Sensing() bool
}

type Drive interface {
	Update(dt time.Duration) error
	Duties() (left, right float64)
	Stop() error
}

type Player interface {
	Play(path string)
}

type Config struct {
	StartupSound  string
	ObstacleSound string
}

type Dependencies struct {
	Log         zerolog.Logger
	Clock       clock.Clock
	Drive       Drive
	Front       Ranger
	LeftGround  Ground
	RightGround Ground
	// Controller must command the same drive as Drive.
	Controller *behavior.Controller
	Telemetry  telemetry.Sink
	// Sounds is optional.
	Sounds Player
}

type WanderMode struct {
	Config
	Dependencies

	log            zerolog.Logger
	cancel         context.CancelFunc
	stopWG         sync.WaitGroup
	joystickEvents chan *joystick.Event
	failed         chan error

	tunables    *tunable.Tunables
	wanderSpeed *tunable.Tunable
	turnSpeed   *tunable.Tunable
	turnRate    *tunable.Tunable
	obstacleCM  *tunable.Tunable
}

func New(cfg Config, deps Dependencies) *WanderMode {
	m := &WanderMode{
		Config:         cfg,
		Dependencies:   deps,
		log:            deps.Log.With().Str("component", "wandermode").Logger(),
		joystickEvents: make(chan *joystick.Event, 16),
		failed:         make(chan error, 1),
		tunables:       tunable.New(deps.Log),
	}

	p := deps.Controller.Params()
	m.wanderSpeed = m.tunables.Create("Wander speed", p.WanderSpeed, 0.05)
	m.turnSpeed = m.tunables.Create("Turn speed", p.TurnSpeed, 0.05)
	m.turnRate = m.tunables.Create("Turn rate", p.TurnRate, 0.05)
	m.obstacleCM = m.tunables.Create("Obstacle distance (cm)", p.ObstacleCM, 0.5)

	if deps.Sounds != nil && cfg.ObstacleSound != "" {
		deps.Controller.Notify(func(from, to behavior.State) {
			if to.Kind == behavior.TurnLeft || to.Kind == behavior.TurnRight {
				deps.Sounds.Play(cfg.ObstacleSound)
			}
		})
	}
	return m
}

func (m *WanderMode) Name() string {
	return "Wander mode"
}

func (m *WanderMode) StartupSound() string {
	return m.Config.StartupSound
}

func (m *WanderMode) Start(ctx context.Context) {
	m.stopWG.Add(1)
	var loopCtx context.Context
	loopCtx, m.cancel = context.WithCancel(ctx)
	go func() {
		defer m.stopWG.Done()
		if err := m.Run(loopCtx); err != nil {
			m.log.Error().Err(err).Msg("Control loop failed")
			select {
			case m.failed <- err:
			default:
			}
		}
	}()
}

func (m *WanderMode) Stop() {
	m.cancel()
	m.stopWG.Wait()
	m.tunables.Dump()
}

// Failed delivers the error that ended the control loop.  Only hardware
// failures end it.
func (m *WanderMode) Failed() <-chan error {
	return m.failed
}

// OnJoystickEvent queues the event for the control loop, which applies it
// at the start of its next tick.
func (m *WanderMode) OnJoystickEvent(event *joystick.Event) {
	select {
	case m.joystickEvents <- event:
	default:
		m.log.Warn().Str("event", event.String()).Msg("Dropping joystick event, loop is behind")
	}
}

// Run executes ticks until ctx is done or the hardware fails, and leaves the
// motors stopped either way.
func (m *WanderMode) Run(ctx context.Context) (err error) {
	defer func() {
		if stopErr := m.Drive.Stop(); stopErr != nil && err == nil {
			err = errors.Wrap(stopErr, "failed to stop motors")
		}
	}()

	m.log.Info().Str("state", m.Controller.State().String()).Msg("Control loop started")
	last := m.Clock.Now()
	for ctx.Err() == nil {
		m.applyJoystickEvents()

		now := m.Clock.Now()
		dt := now.Sub(last)
		last = now
		if err := m.tick(now, dt); err != nil {
			return err
		}
	}
	m.log.Info().Msg("Control loop stopped")
	return nil
}

func (m *WanderMode) tick(now time.Time, dt time.Duration) error {
	if err := m.LeftGround.Update(dt); err != nil {
		return errors.Wrap(err, "left ground sensor")
	}
	if err := m.RightGround.Update(dt); err != nil {
		return errors.Wrap(err, "right ground sensor")
	}
	if err := m.Drive.Update(dt); err != nil {
		return errors.Wrap(err, "drive")
	}
	front, err := m.Front.Measure()
	if err != nil {
		return errors.Wrap(err, "front rangefinder")
	}
	if err := m.Controller.Step(dt, front); err != nil {
		return errors.Wrap(err, "behavior")
	}

	left, right := m.Drive.Duties()
	m.Telemetry.Emit(telemetry.Sample{
		Time:        now,
		DT:          dt,
		Front:       front,
		LeftGround:  m.LeftGround.Sensing(),
		RightGround: m.RightGround.Sensing(),
		State:       m.Controller.State(),
		LeftDuty:    left,
		RightDuty:   right,
	})
	return nil
}

func (m *WanderMode) applyJoystickEvents() {
	for {
		select {
		case event := <-m.joystickEvents:
			m.onJoystickEvent(event)
		default:
			return
		}
	}
}

func (m *WanderMode) onJoystickEvent(event *joystick.Event) {
	switch event.Type {
	case joystick.EventTypeButton:
		switch {
		case event.Pressed(joystick.ButtonSquare):
			m.Controller.Override(behavior.Off)
		case event.Pressed(joystick.ButtonCross):
			m.Controller.Override(behavior.Wander)
		}
	case joystick.EventTypeAxis:
		switch event.Number {
		case joystick.AxisDPadX:
			if event.Value > 0 {
				m.tunables.SelectNext()
			} else if event.Value < 0 {
				m.tunables.SelectPrev()
			}
		case joystick.AxisDPadY:
			if event.Value < 0 {
				m.tunables.Adjust(1)
			} else if event.Value > 0 {
				m.tunables.Adjust(-1)
			} else {
				return
			}
			p := m.Controller.Params()
			p.WanderSpeed = m.wanderSpeed.Get()
			p.TurnSpeed = m.turnSpeed.Get()
			p.TurnRate = m.turnRate.Get()
			p.ObstacleCM = m.obstacleCM.Get()
			m.Controller.SetParams(p)
		}
	}
}
