package pausemode

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type stopCounter int

func (s *stopCounter) Stop() error {
	*s++
	return nil
}

func TestStartStopsMotors(t *testing.T) {
	var stops stopCounter
	p := New(&stops, "", zerolog.Nop())
	p.Start(context.Background())
	p.Stop()
	if stops != 1 {
		t.Fatalf("Expected one Stop, got %d", stops)
	}
}

type failingStopper struct{}

func (failingStopper) Stop() error { return errors.New("boom") }

func TestStopFailureReported(t *testing.T) {
	p := New(failingStopper{}, "", zerolog.Nop())
	p.Start(context.Background())
	select {
	case err := <-p.Failed():
		if err == nil {
			t.Fatal("Expected an error")
		}
	default:
		t.Fatal("Expected the failure on Failed()")
	}
}
