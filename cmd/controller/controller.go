package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/clock"
	"github.com/BEN1JEN/cleaning-robot/pkg/config"
	"github.com/BEN1JEN/cleaning-robot/pkg/drive"
	"github.com/BEN1JEN/cleaning-robot/pkg/groundsensor"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
	"github.com/BEN1JEN/cleaning-robot/pkg/joystick"
	"github.com/BEN1JEN/cleaning-robot/pkg/pausemode"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
	"github.com/BEN1JEN/cleaning-robot/pkg/screen"
	"github.com/BEN1JEN/cleaning-robot/pkg/sound"
	"github.com/BEN1JEN/cleaning-robot/pkg/telemetry"
	"github.com/BEN1JEN/cleaning-robot/pkg/wandermode"
)

const projectName = "Cleaning robot"

var (
	projectVersion = "dev"
	projectBuild   = "dev"
)

type Mode interface {
	Name() string
	StartupSound() string
	Start(ctx context.Context)
	Stop()
}

type JoystickUser interface {
	OnJoystickEvent(event *joystick.Event)
}

// FailingMode is a mode that can die on a hardware failure.
type FailingMode interface {
	Failed() <-chan error
}

func main() {
	var levelFlag string
	var configPath string
	var backend string
	var metricsAddr string
	var joystickDevice string
	var screenDevice string

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&configPath, "config", "c", config.DefaultPath, "YAML config file")
	pflag.StringVar(&backend, "backend", "", "GPIO backend (periph|sysfs|sim), overrides the config file")
	pflag.StringVar(&metricsAddr, "metrics-addr", "", "Address to serve prometheus metrics on, overrides the config file")
	pflag.StringVar(&joystickDevice, "joystick", "", "Joystick device, overrides JOYSTICK_DEVICE and the config file")
	pflag.StringVar(&screenDevice, "screen", "", "Framebuffer device of the status screen, overrides the config file")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)
	logger.Info().
		Int("gomaxprocs", runtime.GOMAXPROCS(0)).
		Msgf("Starting %s (version %s build %s)", projectName, projectVersion, projectBuild)

	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			Exitf("Failed to load config: %v\n", err)
		}
		logger.Warn().Str("path", configPath).Msg("No config file, using defaults")
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if metricsAddr != "" {
		cfg.Telemetry.MetricsAddr = metricsAddr
	}
	if joystickDevice == "" {
		joystickDevice = os.Getenv("JOYSTICK_DEVICE")
	}
	if joystickDevice != "" {
		cfg.Joystick = joystickDevice
	}
	if screenDevice != "" {
		cfg.Telemetry.Screen = screenDevice
	}
	if err := cfg.Validate(); err != nil {
		Exitf("Invalid config: %v\n", err)
	}
	if data, err := cfg.Marshal(); err == nil {
		logger.Info().Msgf("Config in use:\n%s", data)
	}
	if err := cfg.WriteInUse(configPath); err != nil {
		logger.Warn().Err(err).Msg("Failed to record config in use")
	}

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())
	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	if err := run(ctx, cfg, logger); err != nil {
		Exitf("Robot failed: %v\n", err)
	}
}

// run builds the robot from cfg and drives it until ctx is done or the
// hardware fails.  The motors are stopped and the lines released on return.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	hw, err := hardware.New(cfg.Backend, logger)
	if err != nil {
		return errors.Wrap(err, "failed to initialize hardware")
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release GPIO lines")
		}
	}()

	clk := clock.System()
	drv, err := drive.Open(hw, cfg.Pins.LeftWheel, cfg.Pins.RightWheel, cfg.PWMFrequency)
	if err != nil {
		return errors.Wrap(err, "failed to open drive")
	}
	defer func() {
		logger.Info().Msg("Zeroing motors for shut down")
		if err := drv.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to zero motors")
		}
	}()
	front, err := rangefinder.Open(hw, cfg.Pins.Trigger, cfg.Pins.Echo, clk, cfg.Rangefinder)
	if err != nil {
		return errors.Wrap(err, "failed to open rangefinder")
	}
	leftGround, err := groundsensor.Open(hw, cfg.Pins.GroundLeft, cfg.Pins.GroundActiveLow, cfg.GroundThreshold)
	if err != nil {
		return errors.Wrap(err, "failed to open left ground sensor")
	}
	rightGround, err := groundsensor.Open(hw, cfg.Pins.GroundRight, cfg.Pins.GroundActiveLow, cfg.GroundThreshold)
	if err != nil {
		return errors.Wrap(err, "failed to open right ground sensor")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ctrl := behavior.New(drv, behavior.NewRandomCoin(seed), cfg.Behavior, logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(reg)
	ctrl.Notify(metrics.Transition)

	sinks := telemetry.Multi{
		telemetry.NewLogSink(logger, cfg.Telemetry.LogInterval),
		metrics,
	}
	var scr *screen.Screen
	if cfg.Telemetry.Screen != "" {
		scr = screen.New(cfg.Telemetry.Screen, logger)
		sinks = append(sinks, scr)
	}

	player := sound.New(logger)
	defer player.Close()

	allModes := []Mode{
		wandermode.New(wandermode.Config{
			StartupSound:  cfg.Sounds.Start,
			ObstacleSound: cfg.Sounds.Obstacle,
		}, wandermode.Dependencies{
			Log:         logger,
			Clock:       clk,
			Drive:       drv,
			Front:       front,
			LeftGround:  leftGround,
			RightGround: rightGround,
			Controller:  ctrl,
			Telemetry:   sinks,
			Sounds:      player,
		}),
		pausemode.New(drv, cfg.Sounds.Pause, logger),
	}

	joystickEvents := make(chan *joystick.Event, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return joystick.Watch(ctx, cfg.Joystick, logger, joystickEvents) })
	if scr != nil {
		g.Go(func() error { return scr.Loop(ctx) })
	}
	if cfg.Telemetry.MetricsAddr != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.Telemetry.MetricsAddr, reg, logger) })
	}
	g.Go(func() error { return runModes(ctx, allModes, joystickEvents, player, logger) })
	return g.Wait()
}

// runModes runs one mode at a time, cycling through them with the Options
// and Share buttons.  It returns when ctx is done or the active mode fails.
func runModes(ctx context.Context, allModes []Mode, events <-chan *joystick.Event, player *sound.Player, logger zerolog.Logger) error {
	log := logger.With().Str("component", "modes").Logger()

	activeModeIdx := 0
	activeMode := allModes[0]
	start := func() {
		log.Info().Msgf("----- %s -----", activeMode.Name())
		player.Play(activeMode.StartupSound())
		activeMode.Start(ctx)
	}
	failed := func() <-chan error {
		if fm, ok := activeMode.(FailingMode); ok {
			return fm.Failed()
		}
		return nil
	}
	switchMode := func(delta int) {
		log.Debug().Int("delta", delta).Msg("Mode switch")
		activeMode.Stop()
		activeModeIdx = (activeModeIdx + delta + len(allModes)) % len(allModes)
		activeMode = allModes[activeModeIdx]
		start()
	}
	start()

	watchdog := time.NewTicker(5 * time.Second)
	defer watchdog.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context done, stopping active mode")
			activeMode.Stop()
			return nil
		case err := <-failed():
			activeMode.Stop()
			return errors.Wrapf(err, "%s failed", activeMode.Name())
		case event := <-events:
			// Intercept the Options and Share buttons to implement mode switching.
			if event.Pressed(joystick.ButtonOptions) {
				log.Info().Msg("Options pressed: switching modes >>")
				switchMode(1)
				continue
			} else if event.Pressed(joystick.ButtonShare) {
				log.Info().Msg("Share pressed: switching modes <<")
				switchMode(-1)
				continue
			}
			if ju, ok := activeMode.(JoystickUser); ok {
				ju.OnJoystickEvent(event)
			}
		case <-watchdog.C:
			log.Debug().Str("mode", activeMode.Name()).Msg("Main loop still running")
		}
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "metrics server failed")
	}
	return nil
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
