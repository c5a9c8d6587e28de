package hardware

import (
	"io"

	"github.com/ecc1/gpio"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Sysfs drives the lines through /sys/class/gpio.  Every access is a file
// write, so it is slower than Periph but needs no special privileges beyond
// the gpio group.
type Sysfs struct {
	log     zerolog.Logger
	outputs []gpio.OutputPin
	inputs  []gpio.InputPin
}

func NewSysfs(log zerolog.Logger) *Sysfs {
	return &Sysfs{log: log}
}

func (s *Sysfs) Output(n int) (Output, error) {
	activeLow := false
	initialValue := false
	pin, err := gpio.Output(n, activeLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output[%d] failed", n)
	}
	s.outputs = append(s.outputs, pin)
	s.log.Debug().Int("pin", n).Msg("Exported output")
	return pin, nil
}

func (s *Sysfs) Input(n int, activeLow bool) (Input, error) {
	pin, err := gpio.Input(n, activeLow)
	if err != nil {
		return nil, errors.Wrapf(err, "Input[%d] failed", n)
	}
	s.inputs = append(s.inputs, pin)
	s.log.Debug().Int("pin", n).Bool("active-low", activeLow).Msg("Exported input")
	return pin, nil
}

func (s *Sysfs) Close() error {
	var firstErr error
	for _, pin := range s.outputs {
		if err := pin.Write(false); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to drive output low")
		}
		closeQuietly(pin)
	}
	for _, pin := range s.inputs {
		closeQuietly(pin)
	}
	s.outputs, s.inputs = nil, nil
	return firstErr
}

func closeQuietly(pin interface{}) {
	if c, ok := pin.(io.Closer); ok {
		_ = c.Close()
	}
}

var _ Interface = (*Sysfs)(nil)
