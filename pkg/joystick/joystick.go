// Package joystick reads a PS4 pad through the Linux joystick interface
// (/dev/input/jsN).  Only the controls the robot reacts to are named.
package joystick

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type EventType uint8

const (
	EventTypeButton EventType = 1
	EventTypeAxis   EventType = 2

	// Set on the synthetic events that report the initial state.
	eventTypeInit = 0x80
)

// Buttons read 1 when pressed and 0 when released.
const (
	ButtonCross   = 0
	ButtonSquare  = 3
	ButtonShare   = 8
	ButtonOptions = 9
)

// The D-pad reports -32767 for up/left and +32767 for down/right.
const (
	AxisDPadX = 6
	AxisDPadY = 7
)

func (e EventType) String() string {
	switch e {
	case EventTypeAxis:
		return "axis"
	case EventTypeButton:
		return "button"
	default:
		return fmt.Sprintf("type%d", uint8(e))
	}
}

type Joystick struct {
	device *os.File

	deviceEpoch    uint32
	wallclockEpoch time.Time
}

type rawEvent struct {
	Time   uint32
	Value  int16
	Type   uint8
	Number uint8
}

type Event struct {
	Time   time.Time
	Value  int16
	Type   EventType
	Number uint8
}

func (e *Event) String() string {
	return fmt.Sprintf("%v(%v)=%v", e.Type, e.Number, e.Value)
}

// Pressed reports whether e is button being pushed down.
func (e *Event) Pressed(button uint8) bool {
	return e.Type == EventTypeButton && e.Number == button && e.Value == 1
}

func NewJoystick(device string) (*Joystick, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return &Joystick{
		device: f,
	}, nil
}

func (j *Joystick) ReadEvent() (*Event, error) {
	return j.decode(j.device)
}

func (j *Joystick) decode(r io.Reader) (*Event, error) {
	var raw rawEvent
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return nil, err
	}
	// Device timestamps are milliseconds from an arbitrary origin; anchor
	// them to the wall clock at the first event.
	if j.deviceEpoch == 0 {
		j.deviceEpoch = raw.Time
		j.wallclockEpoch = time.Now()
	}
	return &Event{
		Time:   j.wallclockEpoch.Add(time.Duration(raw.Time-j.deviceEpoch) * time.Millisecond),
		Value:  raw.Value,
		Type:   EventType(raw.Type &^ eventTypeInit),
		Number: raw.Number,
	}, nil
}

func (j *Joystick) Close() error {
	return j.device.Close()
}

// Watch opens device, retrying every second until it appears, and forwards
// its events until ctx is done.  The robot drives itself, so a missing or
// failed joystick is logged rather than treated as fatal.
func Watch(ctx context.Context, device string, log zerolog.Logger, events chan<- *Event) error {
	log = log.With().Str("component", "joystick").Str("device", device).Logger()
	firstLog := true
	for ctx.Err() == nil {
		j, err := NewJoystick(device)
		if err != nil {
			if firstLog {
				log.Warn().Err(err).Msg("Waiting for joystick")
				firstLog = false
			}
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		log.Info().Msg("Opened joystick")
		firstLog = true
		err = forward(ctx, j, events)
		if ctx.Err() == nil {
			log.Warn().Err(err).Msg("Joystick failed")
		}
	}
	return nil
}

func forward(ctx context.Context, j *Joystick, events chan<- *Event) error {
	// ReadEvent blocks; closing the device is the only way to interrupt it.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = j.Close()
	}()
	for ctx.Err() == nil {
		event, err := j.ReadEvent()
		if err != nil {
			return err
		}
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}
