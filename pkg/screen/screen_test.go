package screen

import (
	"image"
	"image/color"
	"testing"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
)

func TestToRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, S, S))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{G: 255, A: 255})
	img.Set(0, 1, color.RGBA{B: 255, A: 255})

	var buf [S * S * 2]byte
	toRGB565(img, buf[:])

	pixel := func(x, y int) uint16 {
		i := (S-1-y)*2 + x*S*2
		return uint16(buf[i+1])<<8 | uint16(buf[i])
	}
	if p := pixel(0, 0); p != 0xf800 {
		t.Errorf("Red encoded as %04x", p)
	}
	if p := pixel(1, 0); p != 0x07e0 {
		t.Errorf("Green encoded as %04x", p)
	}
	if p := pixel(0, 1); p != 0x001f {
		t.Errorf("Blue encoded as %04x", p)
	}
	if p := pixel(5, 5); p != 0 {
		t.Errorf("Black encoded as %04x", p)
	}
}

func TestRenderGroundBoxes(t *testing.T) {
	img := Render(telemetry.Sample{
		Front:      rangefinder.Reading{DistanceCM: 4.2},
		LeftGround: true,
		State:      behavior.State{Kind: behavior.TurnLeft},
	})
	if img.Bounds() != image.Rect(0, 0, S, S) {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}
	// Centre of the filled left box is lit; the right box is only outlined.
	if r, _, _, _ := img.At(34, 50).RGBA(); r == 0 {
		t.Fatal("Left box should be filled")
	}
	if r, g, b, _ := img.At(94, 50).RGBA(); r != 0 || g != 0 || b != 0 {
		t.Fatal("Right box should be empty")
	}
}
