package joystick

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	for _, raw := range []rawEvent{
		{Time: 1000, Value: 1, Type: uint8(EventTypeButton), Number: ButtonSquare},
		// An initial-state event decodes as a plain axis event.
		{Time: 1250, Value: -32767, Type: uint8(EventTypeAxis) | eventTypeInit, Number: AxisDPadY},
	} {
		if err := binary.Write(&buf, binary.LittleEndian, raw); err != nil {
			t.Fatal(err)
		}
	}

	j := &Joystick{}
	first, err := j.decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Pressed(ButtonSquare) || first.Pressed(ButtonCross) {
		t.Fatalf("Unexpected first event %v", first)
	}

	second, err := j.decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if second.Type != EventTypeAxis || second.Number != AxisDPadY || second.Value != -32767 {
		t.Fatalf("Unexpected second event %v", second)
	}
	if d := second.Time.Sub(first.Time); d != 250*time.Millisecond {
		t.Fatalf("Expected events 250ms apart, got %v", d)
	}

	if _, err := j.decode(&buf); err == nil {
		t.Fatal("Expected an error at end of input")
	}
}
