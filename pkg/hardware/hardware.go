package hardware

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	BackendPeriph = "periph"
	BackendSysfs  = "sysfs"
	BackendSim    = "sim"
)

var maskAny = errors.WithStack

// New opens the named GPIO backend.
func New(backend string, log zerolog.Logger) (Interface, error) {
	log = log.With().Str("component", "hardware").Str("backend", backend).Logger()
	switch backend {
	case BackendPeriph:
		hw, err := NewPeriph(log)
		if err != nil {
			return nil, maskAny(err)
		}
		return hw, nil
	case BackendSysfs:
		return NewSysfs(log), nil
	case BackendSim:
		return NewSim(log), nil
	default:
		return nil, errors.Errorf("unknown hardware backend '%s' (%s|%s|%s)",
			backend, BackendPeriph, BackendSysfs, BackendSim)
	}
}

type inverted struct {
	Input
}

func (i inverted) Read() (bool, error) {
	high, err := i.Input.Read()
	return !high, err
}

func maybeInvert(in Input, activeLow bool) Input {
	if activeLow {
		return inverted{in}
	}
	return in
}
