// Package screen shows the robot's view of the world on the 128x128 TFT
// hat, refreshed twice a second from the latest telemetry sample.
package screen

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
)

const (
	S = 128

	refreshInterval = 500 * time.Millisecond
)

type Screen struct {
	device string
	log    zerolog.Logger

	lock   sync.Mutex
	latest telemetry.Sample
	seen   bool
}

func New(device string, log zerolog.Logger) *Screen {
	return &Screen{
		device: device,
		log:    log.With().Str("component", "screen").Str("device", device).Logger(),
	}
}

// Emit records the sample for the next refresh.
func (s *Screen) Emit(sample telemetry.Sample) {
	s.lock.Lock()
	s.latest = sample
	s.seen = true
	s.lock.Unlock()
}

// Loop redraws the screen until ctx is done, then blanks it.  A missing
// screen is not an error.
func (s *Screen) Loop(ctx context.Context) error {
	f, err := os.OpenFile(s.device, os.O_RDWR, 0666)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to open screen, ignoring")
		return nil
	}
	defer f.Close()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	var buf [S * S * 2]byte
	for {
		select {
		case <-ctx.Done():
			blank := [S * S * 2]byte{}
			_ = writeFrame(f, blank[:])
			return nil
		case <-ticker.C:
		}

		s.lock.Lock()
		sample, seen := s.latest, s.seen
		s.lock.Unlock()
		if !seen {
			continue
		}

		toRGB565(Render(sample), buf[:])
		if err := writeFrame(f, buf[:]); err != nil {
			s.log.Warn().Err(err).Msg("Screen failure")
			return nil
		}
	}
}

func writeFrame(f *os.File, buf []byte) error {
	if _, err := f.Seek(0, 0); err != nil {
		return errors.Wrap(err, "seek failed")
	}
	for i := 0; i < S; i++ {
		if _, err := f.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
			return errors.Wrap(err, "write failed")
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

// Render draws a sample: the front distance at the top, one box per ground
// sensor (filled while sensing) and the behavior state underneath.
func Render(sample telemetry.Sample) image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString("FRONT", 10, 16)
	if sample.Front.Valid() {
		dc.DrawString(fmt.Sprintf("%.1f cm", sample.Front.DistanceCM), 60, 16)
	} else {
		dc.DrawString("--", 60, 16)
	}

	drawGround(dc, 14, "L", sample.LeftGround)
	drawGround(dc, 74, "R", sample.RightGround)

	if sample.State.Kind == behavior.TurnLeft || sample.State.Kind == behavior.TurnRight {
		dc.SetRGB(1, 0.2, 0)
	} else {
		dc.SetRGBA(1, 0.9, 0, 1)
	}
	dc.DrawString(sample.State.Kind.String(), 10, 100)
	dc.DrawString(fmt.Sprintf("%+.2f %+.2f", sample.LeftDuty, sample.RightDuty), 10, 116)
	return dc.Image()
}

func drawGround(dc *gg.Context, x float64, label string, sensing bool) {
	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawRectangle(x, 30, 40, 40)
	if sensing {
		dc.Fill()
	} else {
		dc.SetLineWidth(2)
		dc.Stroke()
	}
	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawString(label, x+16, 84)
}

// toRGB565 converts img to the hat's 16-bit format.  The panel is mounted
// rotated, so rows of the image become columns of the framebuffer.
func toRGB565(img image.Image, buf []byte) {
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
}
