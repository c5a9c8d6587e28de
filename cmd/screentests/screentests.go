package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
	"github.com/BEN1JEN/cleaning-robot/pkg/screen"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
)

var kinds = map[string]behavior.Kind{
	"off":   behavior.Off,
	"w":     behavior.Wander,
	"left":  behavior.TurnLeft,
	"right": behavior.TurnRight,
}

func main() {
	var device string
	pflag.StringVar(&device, "screen", "/dev/fb1", "Framebuffer device")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	s := screen.New(device, logger)
	go func() {
		_ = s.Loop(ctx)
	}()

	fmt.Println(
		`Enter: <state> <distance-cm> <left-ground> <right-ground>

<state>        off, w, left or right
<distance-cm>  a number, or - for no reading
<*-ground>     1 if the sensor sees the ground, else 0`)

	sample := telemetry.Sample{State: behavior.State{Kind: behavior.Wander}}
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) < 4 {
			fmt.Println("Not enough parameters")
			continue
		}
		kind, ok := kinds[parts[0]]
		if !ok {
			fmt.Println("Unknown state", parts[0])
			continue
		}
		sample.State = behavior.State{Kind: kind}
		sample.Front = rangefinder.Reading{Err: rangefinder.ErrNoEcho}
		if parts[1] != "-" {
			cm, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				fmt.Println("Expected float, not ", parts[1])
				continue
			}
			sample.Front = rangefinder.Reading{DistanceCM: cm}
		}
		sample.LeftGround = parts[2] == "1"
		sample.RightGround = parts[3] == "1"
		sample.Time = time.Now()
		s.Emit(sample)
	}
}
