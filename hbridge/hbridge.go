// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package hbridge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DutyRange is the resolution of the current curves and of DutyMax().
const DutyRange = 255

// DefaultFrequency is the PWM frequency used when Opts.Frequency is 0.
const DefaultFrequency = 490 * physic.Hertz

var (
	// ErrMissingPin is returned by New when a coil pin is nil.
	ErrMissingPin = errors.New("hbridge: missing coil pin")

	// ErrNoPWM is returned when Microstep is requested on a driver built
	// without PWM pins.
	ErrNoPWM = errors.New("hbridge: micro-stepping requires PWM pins")

	// ErrInvalidMode is returned by ParseMode for an unknown name.
	ErrInvalidMode = errors.New("hbridge: invalid step mode")
)

// Direction is the rotation direction of a step.
type Direction int

const (
	Forward  Direction = 0
	Backward Direction = 1
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Mode is the coil energization sequence used by Step.
type Mode int

const (
	Single     Mode = 1
	Double     Mode = 2
	Interleave Mode = 3
	Microstep  Mode = 4
)

var modeNames = map[Mode]string{
	Single:     "single",
	Double:     "double",
	Interleave: "interleave",
	Microstep:  "microstep",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode returns the Mode named s, ignoring case.
func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if strings.EqualFold(s, name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// cycle returns the number of rows in the sequence of mode.
func (m Mode) cycle() int {
	if m == Interleave {
		return 8
	}
	return 4
}

// Opts enables current control through the bridge enable inputs.
//
// Both PWMA and PWMB must be set for PWM to be used.
type Opts struct {
	// PWMA and PWMB drive the enable input of the A and B bridges.
	PWMA gpio.PinOut
	PWMB gpio.PinOut
	// PowerFactor limits the coil current, from 0 to 1. Values outside the
	// range are clamped.
	PowerFactor float64
	// Frequency of the PWM signal. Defaults to DefaultFrequency.
	Frequency physic.Frequency
	// Sleep is used to hold each step. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Dev is a handle to a stepper motor wired to two H-bridges.
//
// Dev is not safe for concurrent use.
type Dev struct {
	a1, a2, b1, b2 gpio.PinOut
	pwmA, pwmB     gpio.PinOut

	hasPWM      bool
	powerFactor float64
	dutyMax     int
	freq        physic.Frequency
	sleep       func(time.Duration)

	// step is the cursor in the current sequence. It is only brought back in
	// range at the start of the next Step.
	step int
}

// New returns a driver for the motor whose coils are connected to a1/a2 and
// b1/b2.
//
// opts may be nil, in which case the bridges are assumed to be always
// enabled and Microstep is not available.
func New(a1, a2, b1, b2 gpio.PinOut, opts *Opts) (*Dev, error) {
	if a1 == nil || a2 == nil || b1 == nil || b2 == nil {
		return nil, ErrMissingPin
	}
	d := &Dev{a1: a1, a2: a2, b1: b1, b2: b2, freq: DefaultFrequency, sleep: time.Sleep}
	if opts != nil {
		if opts.PWMA != nil && opts.PWMB != nil {
			d.pwmA, d.pwmB = opts.PWMA, opts.PWMB
			d.hasPWM = true
			d.powerFactor = clamp(opts.PowerFactor)
			d.dutyMax = int(d.powerFactor * DutyRange)
		}
		if opts.Frequency != 0 {
			d.freq = opts.Frequency
		}
		if opts.Sleep != nil {
			d.sleep = opts.Sleep
		}
	}
	for _, p := range d.pins() {
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("hbridge: failed to configure %s: %w", p, err)
		}
	}
	return d, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	s := fmt.Sprintf("H-bridge stepper{%s, %s, %s, %s", d.a1, d.a2, d.b1, d.b2)
	if d.hasPWM {
		s += fmt.Sprintf(", PWM %s, %s", d.pwmA, d.pwmB)
	}
	return s + "}"
}

// Halt releases the coils.
//
// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	return d.Release()
}

// PWM reports whether the driver controls the coil current.
func (d *Dev) PWM() bool {
	return d.hasPWM
}

// PowerFactor returns the clamped power factor, 0 without PWM.
func (d *Dev) PowerFactor() float64 {
	return d.powerFactor
}

// DutyMax returns the duty, out of DutyRange, applied in the full and half
// step modes.
func (d *Dev) DutyMax() int {
	return d.dutyMax
}

// Position returns the raw step cursor.
//
// After a Step the cursor may be one past either end of the sequence; it is
// wrapped by the following Step.
func (d *Dev) Position() int {
	return d.step
}

// Move does a single step without holding it. It is Step(dir, mode, 0).
func (d *Dev) Move(dir Direction, mode Mode) error {
	return d.Step(dir, mode, 0)
}

// Step energizes the coils for the next step of mode in direction dir, then
// blocks for hold.
//
// In Microstep mode the current is ramped over 8 points and hold is spread
// evenly over them. Microstep returns ErrNoPWM, without moving, if the
// driver has no PWM pins. An unknown mode does not touch the pins but still moves
// the cursor.
//
// If a pin write fails the cursor is left untouched.
func (d *Dev) Step(dir Direction, mode Mode, hold time.Duration) error {
	n := mode.cycle()
	if d.step >= n {
		d.step = 0
	} else if d.step < 0 {
		d.step = n - 1
	}

	var err error
	switch mode {
	case Single, Double, Interleave:
		err = d.fullStep(table(mode)[d.step], hold)
	case Microstep:
		if !d.hasPWM {
			return ErrNoPWM
		}
		err = d.microStep(dir, hold)
	}
	if err != nil {
		return err
	}

	if dir == Forward {
		d.step++
	} else {
		d.step--
	}
	return nil
}

// Release drives all the coil pins low, letting the rotor turn freely.
//
// The cursor is kept so the next Step resumes the sequence.
func (d *Dev) Release() error {
	for _, p := range []gpio.PinOut{d.a1, d.a2, d.b1, d.b2} {
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("hbridge: failed to release %s: %w", p, err)
		}
	}
	return nil
}

func (d *Dev) fullStep(r row, hold time.Duration) error {
	if d.hasPWM {
		if err := d.duty(d.dutyMax, d.dutyMax); err != nil {
			return err
		}
	}
	if err := d.coils(r); err != nil {
		return err
	}
	if hold > 0 {
		d.sleep(hold)
	}
	return nil
}

func (d *Dev) microStep(dir Direction, hold time.Duration) error {
	if err := d.coils(microSteps[d.step]); err != nil {
		return err
	}
	first, inc := d.step*pointsPerStep, 1
	if dir != Forward {
		first, inc = first+pointsPerStep-1, -1
	}
	pause := hold / pointsPerStep
	for i, j := 0, first; i < pointsPerStep; i, j = i+1, j+inc {
		a := int(float64(curveA[j]) * d.powerFactor)
		b := int(float64(curveB[j]) * d.powerFactor)
		if err := d.duty(a, b); err != nil {
			return err
		}
		if pause > 0 {
			d.sleep(pause)
		}
	}
	return nil
}

// coils writes r in the pin order A1, B1, A2, B2.
func (d *Dev) coils(r row) error {
	for i, p := range [...]gpio.PinOut{d.a1, d.b1, d.a2, d.b2} {
		if err := p.Out(gpio.Level(r[i])); err != nil {
			return fmt.Errorf("hbridge: failed to write %s: %w", p, err)
		}
	}
	return nil
}

// duty sets the enable inputs of bridges A and B, both out of DutyRange.
func (d *Dev) duty(a, b int) error {
	if err := d.pwmA.PWM(toDuty(a), d.freq); err != nil {
		return fmt.Errorf("hbridge: failed to set duty on %s: %w", d.pwmA, err)
	}
	if err := d.pwmB.PWM(toDuty(b), d.freq); err != nil {
		return fmt.Errorf("hbridge: failed to set duty on %s: %w", d.pwmB, err)
	}
	return nil
}

func (d *Dev) pins() []gpio.PinOut {
	p := []gpio.PinOut{d.a1, d.a2, d.b1, d.b2}
	if d.hasPWM {
		p = append(p, d.pwmA, d.pwmB)
	}
	return p
}

// toDuty scales v from [0, DutyRange] to [0, gpio.DutyMax].
func toDuty(v int) gpio.Duty {
	return gpio.Duty(int64(v) * int64(gpio.DutyMax) / DutyRange)
}

// FromDuty is the inverse of the conversion applied before PinOut.PWM. It
// returns the duty out of DutyRange, rounded to the nearest value.
func FromDuty(d gpio.Duty) int {
	return int((int64(d)*DutyRange + int64(gpio.DutyMax)/2) / int64(gpio.DutyMax))
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

var _ conn.Resource = &Dev{}
