package hardware

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// Periph drives the lines through periph.io's memory-mapped GPIO driver,
// which is fast enough to time the rangefinder's echo in a busy loop.
type Periph struct {
	log     zerolog.Logger
	outputs []gpio.PinIO
}

func NewPeriph(log zerolog.Logger) (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host.Init failed")
	}
	return &Periph{log: log}, nil
}

func (p *Periph) lookup(n int) (gpio.PinIO, error) {
	pin := gpioreg.ByName(strconv.Itoa(n))
	if pin == nil {
		return nil, errors.Errorf("no GPIO pin named %d", n)
	}
	return pin, nil
}

func (p *Periph) Output(n int) (Output, error) {
	pin, err := p.lookup(n)
	if err != nil {
		return nil, maskAny(err)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "Out[%d] failed", n)
	}
	p.outputs = append(p.outputs, pin)
	p.log.Debug().Int("pin", n).Msg("Opened output")
	return periphOutput{pin}, nil
}

func (p *Periph) Input(n int, activeLow bool) (Input, error) {
	pin, err := p.lookup(n)
	if err != nil {
		return nil, maskAny(err)
	}
	if err := pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "In[%d] failed", n)
	}
	p.log.Debug().Int("pin", n).Bool("active-low", activeLow).Msg("Opened input")
	return maybeInvert(periphInput{pin}, activeLow), nil
}

func (p *Periph) Close() error {
	var firstErr error
	for _, pin := range p.outputs {
		if err := pin.Out(gpio.Low); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to release %s", pin)
		}
	}
	p.outputs = nil
	return firstErr
}

type periphOutput struct {
	pin gpio.PinIO
}

func (o periphOutput) Write(high bool) error {
	return o.pin.Out(gpio.Level(high))
}

type periphInput struct {
	pin gpio.PinIO
}

func (i periphInput) Read() (bool, error) {
	return i.pin.Read() == gpio.High, nil
}

var _ Interface = (*Periph)(nil)
