// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the cobraflex YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thermoquad/cobraflex/pkg/motion"
	"github.com/Thermoquad/cobraflex/pkg/wire"
	"gopkg.in/yaml.v3"
)

// HostEnv overrides robot.host when set.
const HostEnv = "COBRAFLEX_HOST"

// Transport kinds
const (
	TransportHTTP      = "http"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Config represents the client configuration
type Config struct {
	Robot    RobotConfig    `yaml:"robot"`
	Chassis  ChassisConfig  `yaml:"chassis"`
	Ramp     RampConfig     `yaml:"ramp"`
	Gimbal   GimbalConfig   `yaml:"gimbal"`
	LED      LEDConfig      `yaml:"led"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Logging  LoggingConfig  `yaml:"logging"`
	Journal  JournalConfig  `yaml:"journal"`
}

// RobotConfig selects how the robot is reached
type RobotConfig struct {
	Transport   string   `yaml:"transport"`
	Host        string   `yaml:"host"`
	Dialect     string   `yaml:"dialect"`
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
	URL         string   `yaml:"url"`
	Username    string   `yaml:"username"`
	NoSSLVerify bool     `yaml:"no_ssl_verify"`
	Timeout     Duration `yaml:"timeout"` // 0 uses the transport's default
}

// ChassisConfig holds drive conventions and speeds
type ChassisConfig struct {
	MaxSpeed        int      `yaml:"max_speed"`
	SpeedLevel      int      `yaml:"speed_level"`
	Period          Duration `yaml:"period"`
	WheelOrder      string   `yaml:"wheel_order"`
	DiagonalDivisor int      `yaml:"diagonal_divisor"`
}

// RampConfig holds the soft start and soft stop steps
type RampConfig struct {
	UpFloor      int      `yaml:"up_floor"`
	UpStep       int      `yaml:"up_step"`
	UpInterval   Duration `yaml:"up_interval"`
	DownFloor    int      `yaml:"down_floor"`
	DownStep     int      `yaml:"down_step"`
	DownInterval Duration `yaml:"down_interval"`
}

// GimbalConfig holds the gimbal repeat period
type GimbalConfig struct {
	Period Duration `yaml:"period"`
}

// LEDConfig selects the light pins
type LEDConfig struct {
	Pins string `yaml:"pins"`
}

// FeedbackConfig holds the feedback poll interval
type FeedbackConfig struct {
	Interval Duration `yaml:"interval"`
}

// LoggingConfig holds log level and file
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// JournalConfig holds the command journal path; empty disables the journal
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Duration is a time.Duration written as a Go duration string ("50ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string like \"50ms\"", value.Line)
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Set parses a Go duration string, as given on the command line.
func (d *Duration) Set(s string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the built-in configuration.
func Default() *Config {
	ramp := motion.DefaultSpeedRamp()
	return &Config{
		Robot: RobotConfig{
			Transport: TransportHTTP,
			Host:      "192.168.4.1",
			Dialect:   "esp32",
			Baud:      115200,
		},
		Chassis: ChassisConfig{
			MaxSpeed:        wire.DefaultMaxSpeed,
			SpeedLevel:      motion.DefaultSpeedLevel,
			Period:          Duration(time.Second),
			WheelOrder:      "fl-fr-rr-rl",
			DiagonalDivisor: wire.DefaultDiagonalDivisor,
		},
		Ramp: RampConfig{
			UpFloor:      ramp.UpFloor,
			UpStep:       ramp.UpStep,
			UpInterval:   Duration(ramp.UpInterval),
			DownFloor:    ramp.DownFloor,
			DownStep:     ramp.DownStep,
			DownInterval: Duration(ramp.DownInterval),
		},
		Gimbal: GimbalConfig{
			Period: Duration(50 * time.Millisecond),
		},
		LED: LEDConfig{
			Pins: "io1-io2",
		},
		Feedback: FeedbackConfig{
			Interval: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.config/cobraflex/config.yaml, or "" if the user
// config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "cobraflex", "config.yaml")
}

// LoadConfig reads path over the defaults and applies environment overrides. An
// empty path loads DefaultPath if it exists.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if host := os.Getenv(HostEnv); host != "" {
		cfg.Robot.Host = host
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be clamped.
func (c *Config) Validate() error {
	switch c.Robot.Transport {
	case TransportHTTP, TransportSerial, TransportWebSocket:
	default:
		return fmt.Errorf("robot.transport: unknown transport %q (use http, serial or websocket)", c.Robot.Transport)
	}
	if c.Chassis.MaxSpeed <= 0 {
		return fmt.Errorf("chassis.max_speed must be positive")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if c.Chassis.Period <= 0 || c.Gimbal.Period <= 0 {
		return fmt.Errorf("chassis.period and gimbal.period must be positive")
	}
	if c.Ramp.UpInterval <= 0 || c.Ramp.DownInterval <= 0 {
		return fmt.Errorf("ramp intervals must be positive")
	}
	if c.Ramp.UpStep <= 0 || c.Ramp.DownStep <= 0 {
		return fmt.Errorf("ramp steps must be positive")
	}
	return nil
}

// Policy returns the wire conventions selected by the configuration.
func (c *Config) Policy() (wire.Policy, error) {
	p := wire.DefaultPolicy()
	p.MaxSpeed = c.Chassis.MaxSpeed
	p.DiagonalDivisor = c.Chassis.DiagonalDivisor

	switch strings.ToLower(c.Chassis.WheelOrder) {
	case "", "fl-fr-rr-rl":
		p.WheelOrder = wire.OrderFrontLeftFrontRightRearRightRearLeft
	case "fl-fr-rl-rr":
		p.WheelOrder = wire.OrderFrontLeftFrontRightRearLeftRearRight
	default:
		return p, fmt.Errorf("chassis.wheel_order: unknown order %q (use fl-fr-rr-rl or fl-fr-rl-rr)", c.Chassis.WheelOrder)
	}

	switch strings.ToLower(c.LED.Pins) {
	case "", "io1-io2":
		p.LEDPins = wire.PinsIO1IO2
	case "io4-io5":
		p.LEDPins = wire.PinsIO4IO5
	default:
		return p, fmt.Errorf("led.pins: unknown pins %q (use io1-io2 or io4-io5)", c.LED.Pins)
	}

	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("chassis: %w", err)
	}
	return p, nil
}

// SpeedRamp returns the configured ramp.
func (c *Config) SpeedRamp() motion.SpeedRamp {
	return motion.SpeedRamp{
		UpFloor:      c.Ramp.UpFloor,
		UpStep:       c.Ramp.UpStep,
		UpInterval:   c.Ramp.UpInterval.Std(),
		DownFloor:    c.Ramp.DownFloor,
		DownStep:     c.Ramp.DownStep,
		DownInterval: c.Ramp.DownInterval.Std(),
	}
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
