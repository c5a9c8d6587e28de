package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/config"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
)

func main() {
	var configPath string
	var backend string
	var interval time.Duration
	pflag.StringVarP(&configPath, "config", "c", config.DefaultPath, "YAML config file")
	pflag.StringVar(&backend, "backend", "", "GPIO backend (periph|sysfs|sim), overrides the config file")
	pflag.DurationVar(&interval, "interval", 100*time.Millisecond, "Time between measurements")
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

	clk := clock.System()
	rf, err := rangefinder.Open(hw, cfg.Pins.Trigger, cfg.Pins.Echo, clk, cfg.Rangefinder)
	if err != nil {
		fmt.Println("Failed to open rangefinder", err)
		return
	}

	fmt.Printf("Trigger %d, echo %d, window [%v, %v) cm\n",
		cfg.Pins.Trigger, cfg.Pins.Echo, cfg.Rangefinder.MinCM, cfg.Rangefinder.MaxCM)
	counts := map[string]int{}
	for n := 1; ; n++ {
		start := clk.Now()
		reading, err := rf.Measure()
		if err != nil {
			fmt.Println("Rangefinder failed", err)
			return
		}
		outcome := "ok"
		if !reading.Valid() {
			outcome = reading.Err.Error()
		}
		counts[outcome]++
		fmt.Printf("%5d %-40v took %v\n", n, reading, clk.Since(start))
		if n%50 == 0 {
			fmt.Println("Outcomes so far:", counts)
		}
		clk.Sleep(interval)
	}
}
