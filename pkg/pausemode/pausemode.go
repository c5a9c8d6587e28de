package pausemode

import (
	"context"

	"github.com/rs/zerolog"
)

// Stopper is the drive as seen by pause mode.
type Stopper interface {
	Stop() error
}

// PauseMode holds the motors at zero.  The PWM channels need no advancing
// while stopped, so no loop runs.
type PauseMode struct {
	drive  Stopper
	sound  string
	log    zerolog.Logger
	failed chan error
}

func New(drive Stopper, sound string, log zerolog.Logger) *PauseMode {
	return &PauseMode{
		drive:  drive,
		sound:  sound,
		log:    log.With().Str("component", "pausemode").Logger(),
		failed: make(chan error, 1),
	}
}

func (p *PauseMode) Name() string {
	return "Pause mode"
}

func (p *PauseMode) StartupSound() string {
	return p.sound
}

func (p *PauseMode) Start(ctx context.Context) {
	if err := p.drive.Stop(); err != nil {
		p.log.Error().Err(err).Msg("Failed to stop motors")
		select {
		case p.failed <- err:
		default:
		}
	}
}

// Failed delivers hardware errors, which end the process.
func (p *PauseMode) Failed() <-chan error {
	return p.failed
}

func (p *PauseMode) Stop() {
}
