package wandermode

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/drive"
	"github.com/BEN1JEN/cleaning-robot/pkg/groundsensor"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
	"github.com/BEN1JEN/cleaning-robot/pkg/joystick"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
)

const tick = 5 * time.Millisecond

var (
	leftPins  = drive.WheelPins{Enable: 18, In0: 23, In1: 24}
	rightPins = drive.WheelPins{Enable: 10, In0: 9, In1: 11}
	noEcho    = rangefinder.Reading{Err: rangefinder.ErrNoEcho}
)

type fixedCoin bool

func (c fixedCoin) Flip() bool { return bool(c) }

// scriptedRanger returns whatever script says for the n'th measurement.
type scriptedRanger struct {
	n      int
	script func(n int) (rangefinder.Reading, error)
}

func (r *scriptedRanger) Measure() (rangefinder.Reading, error) {
	reading, err := r.script(r.n)
	r.n++
	return reading, err
}

// recorder keeps every sample and cancels the run after stopAfter of them.
type recorder struct {
	samples   []telemetry.Sample
	stopAfter int
	cancel    context.CancelFunc
	onEmit    func(n int)
}

func (r *recorder) Emit(s telemetry.Sample) {
	r.samples = append(r.samples, s)
	if r.onEmit != nil {
		r.onEmit(len(r.samples))
	}
	if r.stopAfter > 0 && len(r.samples) >= r.stopAfter {
		r.cancel()
	}
}

type fakePlayer struct {
	played []string
}

func (p *fakePlayer) Play(path string) {
	p.played = append(p.played, path)
}

type rig struct {
	sim    *hardware.Sim
	drive  *drive.Drive
	ranger *scriptedRanger
	rec    *recorder
	mode   *WanderMode
	player *fakePlayer
}

func newRig(t *testing.T, ctx context.Context, stopAfter int, script func(n int) (rangefinder.Reading, error)) (*rig, context.Context) {
	t.Helper()
	log := zerolog.Nop()
	sim := hardware.NewSim(log)
	d, err := drive.Open(sim, leftPins, rightPins, 1000)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	left, err := groundsensor.Open(sim, 4, false, groundsensor.DefaultThreshold)
	if err != nil {
		t.Fatalf("left ground: %v", err)
	}
	right, err := groundsensor.Open(sim, 17, false, groundsensor.DefaultThreshold)
	if err != nil {
		t.Fatalf("right ground: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	r := &rig{
		sim:    sim,
		drive:  d,
		ranger: &scriptedRanger{script: script},
		rec:    &recorder{stopAfter: stopAfter, cancel: cancel},
		player: &fakePlayer{},
	}
	r.mode = New(Config{ObstacleSound: "/sounds/beep.wav"}, Dependencies{
		Log:         log,
		Clock:       clock.NewFake(tick),
		Drive:       d,
		Front:       r.ranger,
		LeftGround:  left,
		RightGround: right,
		Controller:  behavior.New(d, fixedCoin(true), behavior.DefaultParams(), log),
		Telemetry:   r.rec,
		Sounds:      r.player,
	})
	return r, ctx
}

func silent(int) (rangefinder.Reading, error) {
	return noEcho, nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func expectDuties(t *testing.T, s telemetry.Sample, left, right float64) {
	t.Helper()
	if !near(s.LeftDuty, left) || !near(s.RightDuty, right) {
		t.Fatalf("duties = (%v, %v), expected (%v, %v)", s.LeftDuty, s.RightDuty, left, right)
	}
}

func TestObstacleTurnsAndRecovers(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 220, func(n int) (rangefinder.Reading, error) {
		if n == 10 {
			return rangefinder.Reading{DistanceCM: 5}, nil
		}
		return noEcho, nil
	})
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := r.rec.samples
	if len(s) != 220 {
		t.Fatalf("got %d samples", len(s))
	}

	for i := 0; i < 10; i++ {
		if s[i].State.Kind != behavior.Wander {
			t.Fatalf("tick %d: state %v", i, s[i].State)
		}
		expectDuties(t, s[i], -0.4, -0.4)
	}
	// The obstacle tick still drives the wander command; the turn starts on
	// the next one.
	if s[10].State != (behavior.State{Kind: behavior.TurnLeft}) {
		t.Fatalf("tick 10: state %v", s[10].State)
	}
	expectDuties(t, s[10], -0.4, -0.4)
	expectDuties(t, s[11], 1.0, -0.2)
	if s[11].State.Elapsed != tick {
		t.Fatalf("tick 11: elapsed %v", s[11].State.Elapsed)
	}
	if s[209].State.Kind != behavior.TurnLeft || s[209].State.Elapsed != 995*time.Millisecond {
		t.Fatalf("tick 209: state %v", s[209].State)
	}
	if s[210].State.Kind != behavior.Wander {
		t.Fatalf("tick 210: state %v", s[210].State)
	}
	expectDuties(t, s[211], -0.4, -0.4)

	if len(r.player.played) != 1 || r.player.played[0] != "/sounds/beep.wav" {
		t.Fatalf("played %v", r.player.played)
	}
}

func TestEnableLinesFollowWanderDuty(t *testing.T) {
	// 10000 ticks of 10us cover 100 periods of the 1kHz PWM.
	const ticks = 10000
	dt := 10 * time.Microsecond
	r, ctx := newRig(t, context.Background(), ticks, silent)
	r.mode.Clock = clock.NewFake(dt)

	var leftHigh, rightHigh time.Duration
	r.rec.onEmit = func(int) {
		if r.sim.Line(leftPins.Enable).Level() {
			leftHigh += dt
		}
		if r.sim.Line(rightPins.Enable).Level() {
			rightHigh += dt
		}
	}
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	total := ticks * dt
	expected := time.Duration(0.4 * float64(total))
	for side, high := range map[string]time.Duration{"left": leftHigh, "right": rightHigh} {
		if diff := high - expected; diff > time.Millisecond || diff < -time.Millisecond {
			t.Errorf("%s enable high for %v of %v, expected %v", side, high, total, expected)
		}
	}
}

func TestSampleCarriesSameTickReading(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 20, func(n int) (rangefinder.Reading, error) {
		return rangefinder.Reading{DistanceCM: 10 + float64(n)*0.1}, nil
	})
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, s := range r.rec.samples {
		if !near(s.Front.DistanceCM, 10+float64(i)*0.1) {
			t.Fatalf("tick %d: front %v", i, s.Front)
		}
		if s.DT != tick {
			t.Fatalf("tick %d: dt %v", i, s.DT)
		}
	}
}

func TestGroundSensingReported(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 50, silent)
	r.sim.Line(4).Set(true)
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := r.rec.samples
	for i := range s {
		if !s[i].LeftGround {
			t.Fatalf("tick %d: left ground lost", i)
		}
	}
	// The right line never goes active: sensing decays after 200ms.
	if !s[38].RightGround {
		t.Fatalf("tick 38: right ground should still be sensing")
	}
	if s[39].RightGround {
		t.Fatalf("tick 39: right ground should have decayed")
	}
}

func TestShutdownStopsMotors(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 3, silent)
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if l, rt := r.drive.Duties(); l != 0 || rt != 0 {
		t.Fatalf("duties after shutdown = (%v, %v)", l, rt)
	}
	for _, pin := range []int{18, 23, 24, 10, 9, 11} {
		if r.sim.Line(pin).Level() {
			t.Fatalf("pin %d left high", pin)
		}
	}
}

func TestRangefinderFailureEndsLoop(t *testing.T) {
	boom := errors.New("boom")
	r, ctx := newRig(t, context.Background(), 0, func(n int) (rangefinder.Reading, error) {
		if n == 3 {
			return rangefinder.Reading{}, boom
		}
		return noEcho, nil
	})
	err := r.mode.Run(ctx)
	if errors.Cause(err) != boom {
		t.Fatalf("Run = %v, expected boom", err)
	}
	if !strings.Contains(err.Error(), "front rangefinder") {
		t.Fatalf("error not wrapped: %v", err)
	}
	if len(r.rec.samples) != 3 {
		t.Fatalf("got %d samples", len(r.rec.samples))
	}
	if l, rt := r.drive.Duties(); l != 0 || rt != 0 {
		t.Fatalf("duties after failure = (%v, %v)", l, rt)
	}
}

func TestGroundFailureEndsLoop(t *testing.T) {
	boom := errors.New("boom")
	r, ctx := newRig(t, context.Background(), 0, silent)
	r.sim.Line(17).Fail = boom
	err := r.mode.Run(ctx)
	if errors.Cause(err) != boom {
		t.Fatalf("Run = %v, expected boom", err)
	}
	if !strings.Contains(err.Error(), "right ground sensor") {
		t.Fatalf("error not wrapped: %v", err)
	}
}

func TestJoystickOverride(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 10, silent)
	r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: joystick.ButtonSquare, Value: 1})
	r.rec.onEmit = func(n int) {
		if n == 5 {
			r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeButton, Number: joystick.ButtonCross, Value: 1})
		}
	}
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := r.rec.samples
	for i := 0; i < 5; i++ {
		if s[i].State.Kind != behavior.Off {
			t.Fatalf("tick %d: state %v", i, s[i].State)
		}
		expectDuties(t, s[i], -0.2, 1.0)
	}
	if s[5].State.Kind != behavior.Wander {
		t.Fatalf("tick 5: state %v", s[5].State)
	}
	expectDuties(t, s[5], -0.4, -0.4)
}

func TestDPadTunesWanderSpeed(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 2, silent)
	// Up on the D-pad raises the selected tunable, which starts at wander speed.
	r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: -32767})
	r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: 0})
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectDuties(t, r.rec.samples[0], -0.45, -0.45)
	if p := r.mode.Controller.Params(); !near(p.WanderSpeed, 0.45) || !near(p.TurnRate, 0.6) {
		t.Fatalf("params = %+v", p)
	}
}

func TestDPadSelectsObstacleDistance(t *testing.T) {
	r, ctx := newRig(t, context.Background(), 1, silent)
	r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadX, Value: -32767})
	r.mode.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: 32767})
	if err := r.mode.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := r.mode.Controller.Params(); !near(p.ObstacleCM, 5.5) {
		t.Fatalf("obstacle distance = %v", p.ObstacleCM)
	}
}

// orderLog records the calls made during a tick.
type orderLog struct {
	calls []string
}

type orderGround struct {
	name string
	log  *orderLog
}

func (g orderGround) Update(time.Duration) error {
	g.log.calls = append(g.log.calls, g.name)
	return nil
}

func (g orderGround) Sensing() bool { return false }

type orderDrive struct {
	log     *orderLog
	stopErr error
}

func (d *orderDrive) Update(time.Duration) error {
	d.log.calls = append(d.log.calls, "pwm")
	return nil
}

func (d *orderDrive) SetDrive(speed, turn float64) error {
	d.log.calls = append(d.log.calls, "set-drive")
	return nil
}

func (d *orderDrive) Duties() (float64, float64) { return 0, 0 }

func (d *orderDrive) Stop() error {
	d.log.calls = append(d.log.calls, "stop")
	return d.stopErr
}

type orderRanger struct {
	log *orderLog
}

func (r orderRanger) Measure() (rangefinder.Reading, error) {
	r.log.calls = append(r.log.calls, "measure")
	return noEcho, nil
}

type orderSink struct {
	log    *orderLog
	cancel context.CancelFunc
}

func (s orderSink) Emit(telemetry.Sample) {
	s.log.calls = append(s.log.calls, "emit")
	s.cancel()
}

func newOrderMode(ctx context.Context, stopErr error) (*WanderMode, *orderLog, context.Context) {
	log := &orderLog{}
	ctx, cancel := context.WithCancel(ctx)
	d := &orderDrive{log: log, stopErr: stopErr}
	m := New(Config{}, Dependencies{
		Log:         zerolog.Nop(),
		Clock:       clock.NewFake(tick),
		Drive:       d,
		Front:       orderRanger{log: log},
		LeftGround:  orderGround{name: "left-ground", log: log},
		RightGround: orderGround{name: "right-ground", log: log},
		Controller:  behavior.New(d, fixedCoin(false), behavior.DefaultParams(), zerolog.Nop()),
		Telemetry:   orderSink{log: log, cancel: cancel},
	})
	return m, log, ctx
}

func TestTickOrder(t *testing.T) {
	m, log, ctx := newOrderMode(context.Background(), nil)
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := []string{"left-ground", "right-ground", "pwm", "measure", "set-drive", "emit", "stop"}
	if strings.Join(log.calls, ",") != strings.Join(expected, ",") {
		t.Fatalf("calls = %v, expected %v", log.calls, expected)
	}
}

func TestStopFailureReported(t *testing.T) {
	boom := errors.New("boom")
	m, _, ctx := newOrderMode(context.Background(), boom)
	err := m.Run(ctx)
	if errors.Cause(err) != boom {
		t.Fatalf("Run = %v, expected boom", err)
	}
}

// syncRecorder is safe to read once the loop goroutine has stopped.
type syncRecorder struct {
	once    sync.Once
	n       int
	started chan struct{}
}

func (r *syncRecorder) Emit(telemetry.Sample) {
	r.n++
	if r.n >= 5 {
		r.once.Do(func() { close(r.started) })
	}
}

func TestStartStop(t *testing.T) {
	log := zerolog.Nop()
	sim := hardware.NewSim(log)
	d, err := drive.Open(sim, leftPins, rightPins, 1000)
	if err != nil {
		t.Fatalf("drive: %v", err)
	}
	left, _ := groundsensor.Open(sim, 4, false, groundsensor.DefaultThreshold)
	right, _ := groundsensor.Open(sim, 17, false, groundsensor.DefaultThreshold)
	rec := &syncRecorder{started: make(chan struct{})}
	m := New(Config{StartupSound: "/sounds/wander.wav"}, Dependencies{
		Log:         log,
		Clock:       clock.NewFake(tick),
		Drive:       d,
		Front:       &scriptedRanger{script: silent},
		LeftGround:  left,
		RightGround: right,
		Controller:  behavior.New(d, fixedCoin(true), behavior.DefaultParams(), log),
		Telemetry:   rec,
	})
	if m.Name() != "Wander mode" || m.StartupSound() != "/sounds/wander.wav" {
		t.Fatalf("unexpected mode identity %q %q", m.Name(), m.StartupSound())
	}

	m.Start(context.Background())
	select {
	case <-rec.started:
	case <-time.After(5 * time.Second):
		t.Fatalf("loop did not run")
	}
	m.Stop()

	if l, r := d.Duties(); l != 0 || r != 0 {
		t.Fatalf("duties after Stop = (%v, %v)", l, r)
	}
	select {
	case err := <-m.Failed():
		t.Fatalf("unexpected failure %v", err)
	default:
	}
}

func TestStartReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	r, _ := newRig(t, context.Background(), 0, func(n int) (rangefinder.Reading, error) {
		if n == 2 {
			return rangefinder.Reading{}, boom
		}
		return noEcho, nil
	})
	r.mode.Start(context.Background())
	select {
	case err := <-r.mode.Failed():
		if errors.Cause(err) != boom {
			t.Fatalf("failed with %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("failure not reported")
	}
	r.mode.Stop()
}
