package main

import (
	"context"
	"fmt"
	"os"

	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BEN1JEN/cleaning-robot/pkg/joystick"
)

func main() {
	device := os.Getenv("JOYSTICK_DEVICE")
	if device == "" {
		device = "/dev/input/js0"
	}
	pflag.StringVar(&device, "joystick", device, "Joystick device")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	joystickEvents := make(chan *joystick.Event)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return joystick.Watch(ctx, device, logger, joystickEvents) })
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case je := <-joystickEvents:
				fmt.Println(je)
			}
		}
	})
	_ = g.Wait()
}
