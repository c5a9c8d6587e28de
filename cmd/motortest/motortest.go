package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/config"
	"github.com/BEN1JEN/cleaning-robot/pkg/drive"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
)

type command struct {
	speed, turn float64
}

func main() {
	var configPath string
	var backend string
	pflag.StringVarP(&configPath, "config", "c", config.DefaultPath, "YAML config file")
	pflag.StringVar(&backend, "backend", "", "GPIO backend (periph|sysfs|sim), overrides the config file")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	cfg, err := config.Load(configPath)
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		fmt.Println("Failed to load config", err)
		os.Exit(1)
	}
	if backend != "" {
		cfg.Backend = backend
	}

	hw, err := hardware.New(cfg.Backend, logger)
	if err != nil {
		fmt.Println("Failed to open GPIO", err)
		os.Exit(1)
	}
	defer func() {
		_ = hw.Close()
	}()

	drv, err := drive.Open(hw, cfg.Pins.LeftWheel, cfg.Pins.RightWheel, cfg.PWMFrequency)
	if err != nil {
		fmt.Println("Failed to open drive", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Println(
		`Commands:
    d <speed> <turn>   # Drive; both -1.0 to 1.0, positive speed is forwards
    l <duty>           # Left wheel only
    r <duty>           # Right wheel only
    s                  # Stop`)

	commands := make(chan command)
	go readCommands(cancel, commands)

	if err := pump(ctx, drv, clock.System(), commands); err != nil {
		fmt.Println("Drive failed: ", err)
	}
	fmt.Println("Zeroing motors")
	if err := drv.Stop(); err != nil {
		fmt.Println("Failed to zero motors: ", err)
	}
}

// pump advances the PWM channels as fast as it can, applying commands
// between updates.
func pump(ctx context.Context, drv *drive.Drive, clk clock.Clock, commands <-chan command) error {
	last := clk.Now()
	for ctx.Err() == nil {
		select {
		case c := <-commands:
			fmt.Printf("Driving speed %.2f turn %.2f\n", c.speed, c.turn)
			if err := drv.SetDrive(c.speed, c.turn); err != nil {
				return err
			}
		default:
		}
		now := clk.Now()
		if err := drv.Update(now.Sub(last)); err != nil {
			return err
		}
		last = now
		clk.Sleep(20 * time.Microsecond)
	}
	return nil
}

func readCommands(cancel context.CancelFunc, commands chan<- command) {
	defer cancel()
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nFailed to read stdin: ", err)
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		args := make([]float64, 0, 2)
		for _, p := range parts[1:] {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				fmt.Println("Expected float, not ", p)
				args = nil
				break
			}
			args = append(args, v)
		}
		if args == nil {
			continue
		}

		switch parts[0] {
		case "d":
			if len(args) < 2 {
				fmt.Println("Not enough parameters")
				continue
			}
			commands <- command{speed: args[0], turn: args[1]}
		case "l", "r":
			if len(args) < 1 {
				fmt.Println("Not enough parameters")
				continue
			}
			// The drive negates both sums, so undo that to address one wheel.
			half := -args[0] / 2
			if parts[0] == "l" {
				commands <- command{speed: half, turn: half}
			} else {
				commands <- command{speed: half, turn: -half}
			}
		case "s":
			commands <- command{}
		default:
			fmt.Println("Unknown command", parts[0])
		}
	}
}
