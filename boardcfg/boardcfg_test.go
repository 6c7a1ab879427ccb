// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package boardcfg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/GermanBionicSystems/micstep/hbridge"
	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

const testYaml = `
pins:
  a1: P1
  b2: P4
pwm:
  enabled: true
  a: P5
  b: P6
  power_factor: 0.75
mode: Microstep
speed: 1500
`

func TestParse(t *testing.T) {
	got, err := Parse([]byte(testYaml))
	if err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Pins.A1 = "P1"
	want.Pins.B2 = "P4"
	want.PWM = PWM{Enabled: true, A: "P5", B: "P6", PowerFactor: 0.75, FrequencyHz: 490}
	want.Mode = "Microstep"
	want.Speed = 1500
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Parse() difference (-got +want):\n%s", diff)
	}
	if err := got.Validate(); err != nil {
		t.Error(err)
	}
	if m, err := got.StepMode(); err != nil || m != hbridge.Microstep {
		t.Errorf("StepMode() = %s, %v", m, err)
	}
}

func TestParseError(t *testing.T) {
	if _, err := Parse([]byte("pins: [")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	if err := os.WriteFile(path, []byte(testYaml), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Speed != 1500 {
		t.Errorf("Speed = %d, want 1500", c.Speed)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MICSTEP_PIN_A2", "P9")
	t.Setenv("MICSTEP_PWM", "true")
	t.Setenv("MICSTEP_POWER_FACTOR", "0.5")
	t.Setenv("MICSTEP_MODE", "interleave")
	t.Setenv("MICSTEP_RELEASE_TIMEOUT", "250")

	c := Default()
	if err := ApplyEnv(&c); err != nil {
		t.Fatal(err)
	}
	want := Default()
	want.Pins.A2 = "P9"
	want.PWM.Enabled = true
	want.PWM.PowerFactor = 0.5
	want.Mode = "interleave"
	want.ReleaseTimeout = 250
	if diff := cmp.Diff(c, want); diff != "" {
		t.Errorf("ApplyEnv() difference (-got +want):\n%s", diff)
	}
	if got := c.ReleaseDelay(); got != 250*time.Millisecond {
		t.Errorf("ReleaseDelay() = %s", got)
	}
}

func TestApplyEnvError(t *testing.T) {
	t.Setenv("MICSTEP_SPEED", "fast")
	c := Default()
	if err := ApplyEnv(&c); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(c *Config)
		ok     bool
	}{
		{name: "default", modify: func(c *Config) {}, ok: true},
		{name: "missing pin", modify: func(c *Config) { c.Pins.B1 = "" }},
		{name: "pwm without pins", modify: func(c *Config) { c.PWM.Enabled = true; c.PWM.B = "" }},
		{name: "bad mode", modify: func(c *Config) { c.Mode = "wave" }},
		{name: "microstep without pwm", modify: func(c *Config) { c.Mode = "microstep" }},
		{name: "microstep with pwm", modify: func(c *Config) { c.Mode = "microstep"; c.PWM.Enabled = true }, ok: true},
		{name: "zero speed", modify: func(c *Config) { c.Speed = 0 }},
		{name: "negative timeout", modify: func(c *Config) { c.ReleaseTimeout = -1 }},
		{name: "negative frequency", modify: func(c *Config) { c.PWM.FrequencyHz = -1 }},
		{name: "shield without pins", modify: func(c *Config) { c.Shield.Port = 2; c.Pins = Pins{} }, ok: true},
		{name: "bad shield port", modify: func(c *Config) { c.Shield.Port = 3 }},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := Default()
			test.modify(&c)
			err := c.Validate()
			if test.ok && err != nil {
				t.Fatal(err)
			}
			if !test.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got: %v", err)
			}
		})
	}
}

func TestStepDelay(t *testing.T) {
	for _, test := range []struct {
		speed, limit int
		want         time.Duration
	}{
		{speed: 200, limit: 1000, want: 300 * time.Millisecond},
		{speed: 6000, limit: 1000, want: 60 * time.Millisecond},
		{speed: 6000, limit: 0, want: 10 * time.Millisecond},
		{speed: 0, limit: 1000, want: 0},
	} {
		c := Config{Speed: test.speed, SpeedLimit: test.limit}
		if got := c.StepDelay(); got != test.want {
			t.Errorf("speed %d limit %d: StepDelay() = %s, want %s", test.speed, test.limit, got, test.want)
		}
	}
}

func registerPins(t *testing.T, names ...string) map[string]*gpiotest.Pin {
	t.Helper()
	pins := map[string]*gpiotest.Pin{}
	for i, name := range names {
		p := &gpiotest.Pin{N: name, Num: 900 + i}
		if err := gpioreg.Register(p); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = gpioreg.Unregister(name) })
		pins[name] = p
	}
	return pins
}

func TestOpen(t *testing.T) {
	pins := registerPins(t, "BC_A1", "BC_A2", "BC_B1", "BC_B2", "BC_PA", "BC_PB")
	c := Default()
	c.Pins = Pins{A1: "BC_A1", A2: "BC_A2", B1: "BC_B1", B2: "BC_B2"}
	c.PWM = PWM{Enabled: true, A: "BC_PA", B: "BC_PB", PowerFactor: 0.5, FrequencyHz: 1000}
	c.Mode = "microstep"

	dev, err := Open(&c)
	if err != nil {
		t.Fatal(err)
	}
	if !dev.PWM() || dev.DutyMax() != 127 {
		t.Fatalf("PWM() = %t, DutyMax() = %d", dev.PWM(), dev.DutyMax())
	}
	mode, err := c.StepMode()
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Step(hbridge.Forward, mode, 0); err != nil {
		t.Fatal(err)
	}
	// Last point of the first step: coil A off, coil B at full scale.
	if got := hbridge.FromDuty(pins["BC_PB"].D); got != 127 {
		t.Errorf("PWMB duty = %d, want 127", got)
	}
	if got := pins["BC_PA"].D; got != 0 {
		t.Errorf("PWMA duty = %s, want 0", got)
	}
	if got := pins["BC_PA"].F; got != 1000*physic.Hertz {
		t.Errorf("PWMA frequency = %s", got)
	}
	if pins["BC_A1"].L != gpio.High || pins["BC_B1"].L != gpio.High || pins["BC_A2"].L != gpio.Low {
		t.Error("unexpected coil levels")
	}
}

func TestOpenWithoutPWM(t *testing.T) {
	registerPins(t, "BN_A1", "BN_A2", "BN_B1", "BN_B2")
	c := Default()
	c.Pins = Pins{A1: "BN_A1", A2: "BN_A2", B1: "BN_B1", B2: "BN_B2"}
	dev, err := Open(&c)
	if err != nil {
		t.Fatal(err)
	}
	if dev.PWM() {
		t.Error("PWM() = true")
	}
}

func TestOpenErrors(t *testing.T) {
	registerPins(t, "BE_A1", "BE_A2", "BE_B1")
	c := Default()
	c.Pins = Pins{A1: "BE_A1", A2: "BE_A2", B1: "BE_B1", B2: "BE_B2"}
	if _, err := Open(&c); !errors.Is(err, ErrPinNotFound) {
		t.Errorf("expected ErrPinNotFound, got: %v", err)
	}
	c.Pins.B2 = ""
	if _, err := Open(&c); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got: %v", err)
	}
}

func TestOpenShield(t *testing.T) {
	pins := registerPins(t, "BS_PA", "BS_PB")
	c := Default()
	c.Shield.Port = 1
	c.PWM = PWM{Enabled: true, A: "BS_PA", B: "BS_PB", PowerFactor: 1}
	opts, err := c.pwmOpts()
	if err != nil {
		t.Fatal(err)
	}
	rec := &spitest.Record{}
	defer rec.Close()
	dev, err := openShield(rec, c.Shield.Port, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Move(hbridge.Forward, hbridge.Single); err != nil {
		t.Fatal(err)
	}
	// Clear, then M1A (latch bit 2) for the first Single row.
	var got []byte
	for _, op := range rec.Ops {
		got = append(got, op.W...)
	}
	if diff := cmp.Diff(got, []byte{0x00, 0x04}); diff != "" {
		t.Errorf("latch writes difference (-got +want):\n%s", diff)
	}
	if pins["BS_PA"].D != gpio.DutyMax {
		t.Errorf("PWMA duty = %s", pins["BS_PA"].D)
	}
}

func TestOpenShieldErrors(t *testing.T) {
	c := Default()
	if _, _, err := OpenShield(&c); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got: %v", err)
	}
}
