package config

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/BEN1JEN/cleaning-robot/pkg/behavior"
	"github.com/BEN1JEN/cleaning-robot/pkg/drive"
	"github.com/BEN1JEN/cleaning-robot/pkg/groundsensor"
	"github.com/BEN1JEN/cleaning-robot/pkg/hardware"
	"github.com/BEN1JEN/cleaning-robot/pkg/pwm"
	"github.com/BEN1JEN/cleaning-robot/pkg/rangefinder"
)

const DefaultPath = "/cfg/robot.yaml"

type Pins struct {
	GroundLeft      int  `yaml:"ground-left"`
	GroundRight     int  `yaml:"ground-right"`
	GroundActiveLow bool `yaml:"ground-active-low"`

	Trigger int `yaml:"trigger"`
	Echo    int `yaml:"echo"`

	LeftWheel  drive.WheelPins `yaml:"left-wheel"`
	RightWheel drive.WheelPins `yaml:"right-wheel"`
}

type Telemetry struct {
	// LogInterval limits how often samples are logged; 0 logs every tick.
	LogInterval time.Duration `yaml:"log-interval"`
	MetricsAddr string        `yaml:"metrics-addr"`
	// Screen is the framebuffer device of the status display; empty disables it.
	Screen string `yaml:"screen"`
}

type Sounds struct {
	Start    string `yaml:"start"`
	Obstacle string `yaml:"obstacle"`
	Pause    string `yaml:"pause"`
}

type Config struct {
	Backend string `yaml:"backend"`
	Pins    Pins   `yaml:"pins"`

	PWMFrequency    float64            `yaml:"pwm-frequency"`
	Rangefinder     rangefinder.Config `yaml:"rangefinder"`
	GroundThreshold time.Duration      `yaml:"ground-threshold"`
	Behavior        behavior.Params    `yaml:"behavior"`

	// Seed for the turn direction coin; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	Joystick  string    `yaml:"joystick"`
	Telemetry Telemetry `yaml:"telemetry"`
	Sounds    Sounds    `yaml:"sounds"`
}

// Default is the wiring of the robot as built.
func Default() Config {
	return Config{
		Backend: hardware.BackendPeriph,
		Pins: Pins{
			GroundLeft:  4,
			GroundRight: 17,
			Trigger:     27,
			Echo:        22,
			LeftWheel:   drive.WheelPins{Enable: 18, In0: 23, In1: 24},
			RightWheel:  drive.WheelPins{Enable: 10, In0: 9, In1: 11},
		},
		PWMFrequency:    pwm.DefaultFrequency,
		Rangefinder:     rangefinder.DefaultConfig(),
		GroundThreshold: groundsensor.DefaultThreshold,
		Behavior:        behavior.DefaultParams(),
		Joystick:        "/dev/input/js0",
		Telemetry: Telemetry{
			LogInterval: 250 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults.  Keys missing from the file keep their
// default values; unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "failed to read %s", path)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "failed to parse %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config in %s", path)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !(c.PWMFrequency > 0) {
		return errors.Errorf("pwm-frequency must be positive, not %v", c.PWMFrequency)
	}
	if err := c.Rangefinder.Validate(); err != nil {
		return errors.Wrap(err, "rangefinder")
	}
	if c.GroundThreshold <= 0 {
		return errors.Errorf("ground-threshold must be positive, not %v", c.GroundThreshold)
	}
	if c.Behavior.TurnDuration <= 0 {
		return errors.Errorf("behavior turn-duration must be positive, not %v", c.Behavior.TurnDuration)
	}
	seen := map[int]string{}
	for name, pin := range c.pinMap() {
		if other, ok := seen[pin]; ok {
			return errors.Errorf("pin %d used for both %s and %s", pin, other, name)
		}
		seen[pin] = name
	}
	return nil
}

func (c Config) pinMap() map[string]int {
	p := c.Pins
	return map[string]int{
		"ground-left":        p.GroundLeft,
		"ground-right":       p.GroundRight,
		"trigger":            p.Trigger,
		"echo":               p.Echo,
		"left-wheel.enable":  p.LeftWheel.Enable,
		"left-wheel.in0":     p.LeftWheel.In0,
		"left-wheel.in1":     p.LeftWheel.In1,
		"right-wheel.enable": p.RightWheel.Enable,
		"right-wheel.in0":    p.RightWheel.In0,
		"right-wheel.in1":    p.RightWheel.In1,
	}
}

func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(&c)
}

// InUsePath is where the effective config for path is written:
// /cfg/robot.yaml becomes /cfg/robot-in-use.yaml.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

// WriteInUse records the effective config next to path.
func (c Config) WriteInUse(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if err := ioutil.WriteFile(InUsePath(path), data, 0666); err != nil {
		return errors.Wrap(err, "failed to write config in use")
	}
	return nil
}
