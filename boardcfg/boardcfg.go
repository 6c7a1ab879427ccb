// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package boardcfg describes how a stepper motor is wired to a board and how
// fast it may be driven.
//
// A configuration is read from a YAML file, for example:
//
//	pins:
//	  a1: GPIO5
//	  a2: GPIO6
//	  b1: GPIO7
//	  b2: GPIO8
//	pwm:
//	  enabled: true
//	  a: GPIO12
//	  b: GPIO13
//	  power_factor: 0.8
//	mode: microstep
//	speed: 200
//
// Every value can then be overridden by a MICSTEP_* environment variable.
package boardcfg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/GermanBionicSystems/micstep/hbridge"
	"github.com/GermanBionicSystems/micstep/motorshield"
	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

var (
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("boardcfg: invalid configuration")

	// ErrPinNotFound is returned by Open when a pin name is not registered.
	ErrPinNotFound = errors.New("boardcfg: pin not found")
)

// Pins names the GPIOs connected to the bridge inputs, as known by gpioreg.
type Pins struct {
	A1 string `yaml:"a1" env:"MICSTEP_PIN_A1"`
	A2 string `yaml:"a2" env:"MICSTEP_PIN_A2"`
	B1 string `yaml:"b1" env:"MICSTEP_PIN_B1"`
	B2 string `yaml:"b2" env:"MICSTEP_PIN_B2"`
}

// PWM describes the optional enable inputs.
type PWM struct {
	Enabled     bool    `yaml:"enabled" env:"MICSTEP_PWM"`
	A           string  `yaml:"a" env:"MICSTEP_PWM_A"`
	B           string  `yaml:"b" env:"MICSTEP_PWM_B"`
	PowerFactor float64 `yaml:"power_factor" env:"MICSTEP_POWER_FACTOR"`
	FrequencyHz int     `yaml:"frequency_hz" env:"MICSTEP_PWM_FREQUENCY"`
}

// Shield selects a stepper port of an Adafruit Motor Shield v1 instead of
// Pins. PWM.A and PWM.B are then the host pins wired to the port enables.
type Shield struct {
	// Port is 1 or 2, 0 when no shield is used.
	Port int `yaml:"port" env:"MICSTEP_SHIELD_PORT"`
	// SPI is the spireg name of the port feeding the latch, empty for the
	// first one.
	SPI string `yaml:"spi" env:"MICSTEP_SHIELD_SPI"`
}

var pinNames = [...]string{"a1", "a2", "b1", "b2"}

// Config is a board configuration.
type Config struct {
	Pins   Pins   `yaml:"pins"`
	PWM    PWM    `yaml:"pwm"`
	Shield Shield `yaml:"shield"`

	// Mode is the name of the step mode, see hbridge.ParseMode.
	Mode string `yaml:"mode" env:"MICSTEP_MODE"`
	// Speed in steps per minute.
	Speed int `yaml:"speed" env:"MICSTEP_SPEED"`
	// SpeedLimit caps Speed, in steps per minute.
	SpeedLimit int `yaml:"speed_limit" env:"MICSTEP_SPEED_LIMIT"`
	// ReleaseTimeout is how long the coils are held after the last step, in
	// milliseconds.
	ReleaseTimeout int `yaml:"release_timeout" env:"MICSTEP_RELEASE_TIMEOUT"`
}

// Default returns the configuration of a bare H-bridge without PWM.
func Default() Config {
	return Config{
		Pins: Pins{A1: "GPIO5", A2: "GPIO6", B1: "GPIO7", B2: "GPIO8"},
		PWM: PWM{
			A:           "GPIO12",
			B:           "GPIO13",
			PowerFactor: 1,
			FrequencyHz: int(hbridge.DefaultFrequency / physic.Hertz),
		},
		Mode:           "double",
		Speed:          200,
		SpeedLimit:     1000,
		ReleaseTimeout: 1000,
	}
}

// Parse decodes YAML data over the defaults.
func Parse(data []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("boardcfg: failed to parse: %w", err)
	}
	return c, nil
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("boardcfg: %w", err)
	}
	return Parse(data)
}

// ApplyEnv overrides c with the MICSTEP_* variables that are set.
func ApplyEnv(c *Config) error {
	for _, v := range []interface{}{c, &c.Pins, &c.PWM, &c.Shield} {
		if err := env.Parse(v); err != nil {
			return fmt.Errorf("boardcfg: %w", err)
		}
	}
	return nil
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	switch c.Shield.Port {
	case 0:
		for i, p := range []string{c.Pins.A1, c.Pins.A2, c.Pins.B1, c.Pins.B2} {
			if p == "" {
				return fmt.Errorf("%w: pin %s is not set", ErrInvalidConfig, pinNames[i])
			}
		}
	case 1, 2:
	default:
		return fmt.Errorf("%w: shield port %d", ErrInvalidConfig, c.Shield.Port)
	}
	if c.PWM.Enabled && (c.PWM.A == "" || c.PWM.B == "") {
		return fmt.Errorf("%w: pwm enabled without both pins", ErrInvalidConfig)
	}
	if c.PWM.FrequencyHz < 0 {
		return fmt.Errorf("%w: negative pwm frequency", ErrInvalidConfig)
	}
	mode, err := hbridge.ParseMode(c.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if mode == hbridge.Microstep && !c.PWM.Enabled {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, hbridge.ErrNoPWM)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("%w: speed must be positive", ErrInvalidConfig)
	}
	if c.SpeedLimit < 0 || c.ReleaseTimeout < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	return nil
}

// StepMode returns the parsed Mode.
func (c *Config) StepMode() (hbridge.Mode, error) {
	return hbridge.ParseMode(c.Mode)
}

// StepDelay returns how long each step is held to run at Speed, capped by
// SpeedLimit when set.
func (c *Config) StepDelay() time.Duration {
	speed := c.Speed
	if c.SpeedLimit > 0 && speed > c.SpeedLimit {
		speed = c.SpeedLimit
	}
	if speed <= 0 {
		return 0
	}
	return time.Minute / time.Duration(speed)
}

// ReleaseDelay returns ReleaseTimeout as a time.Duration.
func (c *Config) ReleaseDelay() time.Duration {
	return time.Duration(c.ReleaseTimeout) * time.Millisecond
}

// Open looks up the configured pins in gpioreg and returns the motor
// driver.
//
// periph must be initialized first.
func Open(c *Config) (*hbridge.Dev, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var pins [4]gpio.PinOut
	for i, name := range []string{c.Pins.A1, c.Pins.A2, c.Pins.B1, c.Pins.B2} {
		p, err := byName(name)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	opts, err := c.pwmOpts()
	if err != nil {
		return nil, err
	}
	return hbridge.New(pins[0], pins[1], pins[2], pins[3], opts)
}

// OpenShield opens the SPI port of the shield latch and returns the driver
// of the configured stepper port. The returned io.Closer releases the SPI
// port.
//
// periph must be initialized first.
func OpenShield(c *Config) (*hbridge.Dev, io.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	if c.Shield.Port == 0 {
		return nil, nil, fmt.Errorf("%w: no shield port", ErrInvalidConfig)
	}
	opts, err := c.pwmOpts()
	if err != nil {
		return nil, nil, err
	}
	p, err := spireg.Open(c.Shield.SPI)
	if err != nil {
		return nil, nil, fmt.Errorf("boardcfg: %w", err)
	}
	dev, err := openShield(p, c.Shield.Port, opts)
	if err != nil {
		_ = p.Close()
		return nil, nil, err
	}
	return dev, p, nil
}

func openShield(p spi.Port, port int, opts *hbridge.Opts) (*hbridge.Dev, error) {
	conn, err := motorshield.Conn(p)
	if err != nil {
		return nil, fmt.Errorf("boardcfg: %w", err)
	}
	sh, err := motorshield.New(conn)
	if err != nil {
		return nil, err
	}
	var a, b gpio.PinOut
	if opts != nil {
		a, b = opts.PWMA, opts.PWMB
	}
	return sh.Stepper(port, a, b, opts)
}

// pwmOpts returns the hbridge options, nil when PWM is disabled.
func (c *Config) pwmOpts() (*hbridge.Opts, error) {
	if !c.PWM.Enabled {
		return nil, nil
	}
	a, err := byName(c.PWM.A)
	if err != nil {
		return nil, err
	}
	b, err := byName(c.PWM.B)
	if err != nil {
		return nil, err
	}
	return &hbridge.Opts{
		PWMA:        a,
		PWMB:        b,
		PowerFactor: c.PWM.PowerFactor,
		Frequency:   physic.Frequency(c.PWM.FrequencyHz) * physic.Hertz,
	}, nil
}

func byName(name string) (gpio.PinOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrPinNotFound, name)
	}
	return p, nil
}
