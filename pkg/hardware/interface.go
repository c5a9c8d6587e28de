package hardware

// Output is a digital line the robot drives.
type Output interface {
	Write(high bool) error
}

// Input is a digital line the robot samples.
type Input interface {
	Read() (high bool, err error)
}

// Interface opens the digital lines used by the control core.  Pins are
// numbered as on the Raspberry Pi's BCM GPIO header.
type Interface interface {
	Output(pin int) (Output, error)
	// Input opens pin for reading.  With activeLow set, Read reports true
	// while the line is electrically low.
	Input(pin int, activeLow bool) (Input, error)
	// Close drives every opened output low and releases the lines.
	Close() error
}
